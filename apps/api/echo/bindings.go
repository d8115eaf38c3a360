package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/patrol"
)

var (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryTime parses an RFC 3339 timestamp or a `YYYY-MM-DD` date (UTC midnight) query param.
// Missing params give the zero time.
func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date"})
	}
	return t, nil
}

// Period is a [From, To) window bound from the `from` and `to` query params.
type Period struct {
	From time.Time
	To   time.Time
}

// Bind defaults to the current week.
func (p *Period) Bind(ctx echo.Context, now time.Time) error {
	var err error
	if p.From, err = queryTime(ctx, "from"); err != nil {
		return err
	}
	if p.To, err = queryTime(ctx, "to"); err != nil {
		return err
	}
	if p.From.IsZero() {
		p.From = core.StartOfWeek(now)
	}
	if p.To.IsZero() {
		p.To = p.From.AddDate(0, 0, 7)
	}
	if !p.To.After(p.From) {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must be after from"})
	}
	return nil
}

// bindScanFilter reads a patrol.ScanFilter from the query params.
func bindScanFilter(ctx echo.Context) (patrol.ScanFilter, error) {
	params := ctx.QueryParams()
	filter := patrol.ScanFilter{
		OfficerIDs: params["officer_id"],
		HouseID:    core.CleanString(ctx.QueryParam("house_id")),
	}
	for _, st := range params["status"] {
		filter.Statuses = append(filter.Statuses, patrol.SyncStatus(st))
	}

	var err error
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(ctx, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
