package page

import (
	"time"

	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

var (
	noteScope = tenant.MustNew("t1", "p1")
	epoch     = time.Unix(0, 0).UTC()
)
