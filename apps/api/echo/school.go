package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	"github.com/trezcool/masomo-console/core/school"
)

// SchoolStore is the school data the development backend serves.
type SchoolStore interface {
	promotion.Backend
	promotion.LevelFinder
}

type schoolApi struct {
	store      SchoolStore
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *schoolApi) {
	ag := g.Group("", jwt)
	ag.GET("/students", api.queryStudents)
	ag.GET("/classes", api.queryClasses)
	ag.GET("/sessions/current", api.currentSession)

	pg := ag.Group("/promotions", adminMiddleware())
	pg.POST("", api.promote)
	pg.POST("/validate", api.validatePromotion)
	pg.POST("/bulk", api.bulkPromote)
}

// Handlers

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	var query StudentQuery
	query.Bind(ctx)
	if err := api.validate.Struct(query); err != nil {
		return core.TranslateValidationErrors(err, api.translator)
	}

	students, err := api.store.ListStudents(ctx.Request().Context(), query.Filter())
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	levels, err := api.store.ListClassLevels(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing class levels")
	}
	return ctx.JSON(http.StatusOK, levels)
}

func (api *schoolApi) currentSession(ctx echo.Context) error {
	session, err := api.store.GetCurrentSession(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current session")
	}
	if session == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *schoolApi) validatePromotion(ctx echo.Context) error {
	var data school.ValidationRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}

	warnings, err := api.store.ValidatePromotion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "validating promotion")
	}
	if warnings.Warnings == nil {
		warnings.Warnings = []string{}
	}
	return ctx.JSON(http.StatusOK, warnings)
}

func (api *schoolApi) promote(ctx echo.Context) error {
	var data school.PromotionRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}

	res, err := api.store.PromoteStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "promoting student")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *schoolApi) bulkPromote(ctx echo.Context) error {
	var data school.BulkPromotionRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}

	report, err := api.store.BulkPromote(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "bulk promoting")
	}
	if claims, cErr := getContextClaims(ctx); cErr == nil {
		api.logger.Info("bulk promotion requested", map[string]interface{}{
			"source": data.Source(), "target": data.Target(),
			"succeeded": report.Succeeded, "total": report.TotalStudents,
		}, claims.Person())
	}
	return ctx.JSON(http.StatusOK, report)
}
