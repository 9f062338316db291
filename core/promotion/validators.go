package promotion

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

var (
	unknownLevelTag  = "classlevel"
	unknownLevelText = "unknown class level"

	streamRequiredTag  = "streamreq"
	streamRequiredText = "a stream is required for this class level"

	unknownStreamTag  = "streamin"
	unknownStreamText = "this stream is not offered for the class level"
)

// LevelFinder resolves class level labels for the request rules.
type LevelFinder interface {
	FindByLevel(label string) (school.ClassLevel, bool)
}

type levelFinderCtxKey struct{}

// InitValidators registers the promotion request rules that depend on the class catalog.
// The catalog is passed through the context given to validate.StructCtx.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidationCtx(
		promotionStructValidation,
		school.PromotionRequest{},
		school.BulkPromotionRequest{},
	)
	core.RegisterCustomTranslation(validate, translator, unknownLevelTag, unknownLevelText)
	core.RegisterCustomTranslation(validate, translator, streamRequiredTag, streamRequiredText)
	core.RegisterCustomTranslation(validate, translator, unknownStreamTag, unknownStreamText)
}

// WithLevelFinder makes finder available to validate.StructCtx.
func WithLevelFinder(ctx context.Context, finder LevelFinder) context.Context {
	return context.WithValue(ctx, levelFinderCtxKey{}, finder)
}

// promotionStructValidation applies the stream requirement: a stream is required
// iff the resolved class level has streams.
func promotionStructValidation(ctx context.Context, sl validator.StructLevel) {
	finder, ok := ctx.Value(levelFinderCtxKey{}).(LevelFinder)
	if !ok {
		return
	}
	switch req := sl.Current().Interface().(type) {
	case school.PromotionRequest:
		validateLevelAndStream(finder, sl, req.TargetLevel, req.TargetStream, "target")
	case school.BulkPromotionRequest:
		validateLevelAndStream(finder, sl, req.SourceLevel, req.SourceStream, "source")
		validateLevelAndStream(finder, sl, req.TargetLevel, req.TargetStream, "target")
	}
}

func validateLevelAndStream(finder LevelFinder, sl validator.StructLevel, level string, stream *string, prefix string) {
	if level == "" {
		return // `required` reports it
	}
	structPrefix := "Target"
	if prefix == "source" {
		structPrefix = "Source"
	}

	cl, ok := finder.FindByLevel(level)
	if !ok {
		sl.ReportError(level, prefix+"_level", structPrefix+"Level", unknownLevelTag, "")
		return
	}
	if !cl.HasStreams() {
		return
	}
	switch {
	case stream == nil || *stream == "":
		sl.ReportError(stream, prefix+"_stream", structPrefix+"Stream", streamRequiredTag, "")
	case !cl.HasStream(*stream):
		sl.ReportError(*stream, prefix+"_stream", structPrefix+"Stream", unknownStreamTag, "")
	}
}
