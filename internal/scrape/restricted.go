package scrape

import (
	"context"

	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
)

const RestrictedNote = "restricted source"

// Restricted stands in for boards whose terms forbid automated access. It
// never makes a request.
type Restricted struct {
	id string
}

func NewRestricted(id string) Restricted { return Restricted{id: id} }

func (r Restricted) ID() string { return r.id }

func (r Restricted) Fetch(_ context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	res.Metrics.Notes = append(res.Metrics.Notes, RestrictedNote)
	return res, nil
}
