package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	"github.com/trezcool/masomo-console/core/school"
)

var (
	classLevelParam = "class_level"
	streamParam     = "stream"
	statusParam     = "status"
)

// StudentQuery is the roster filter read from the query string.
type StudentQuery struct {
	ClassLevel string `json:"class_level"`
	Stream     string `json:"stream"`
	Status     string `json:"status" validate:"omitempty,oneof=active alumni suspended"`
}

func (q *StudentQuery) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	q.ClassLevel = core.CleanString(data.Get(classLevelParam))
	q.Stream = core.CleanString(data.Get(streamParam))
	q.Status = core.CleanString(data.Get(statusParam), true)
}

func (q StudentQuery) Filter() school.StudentFilter {
	return school.StudentFilter{
		ClassLevel: q.ClassLevel,
		Stream:     q.Stream,
		Status:     school.StudentStatus(q.Status),
	}
}

// bind decodes the JSON body into req and runs the request rules against the class catalog.
func (api *schoolApi) bind(ctx echo.Context, req interface{}) error {
	if err := ctx.Bind(req); err != nil {
		return errors.Wrapf(err, "binding to %T", req)
	}
	vctx := promotion.WithLevelFinder(ctx.Request().Context(), api.store)
	return core.TranslateValidationErrors(api.validate.StructCtx(vctx, req), api.translator)
}
