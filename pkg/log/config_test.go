package log

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}

	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestGlobalLoggerChains(t *testing.T) {
	L().Debug().Str(FieldRoomID, "room-1").Msg("chained on the accessor")
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, L(), Ctx(context.Background()))
}

func TestCtxReturnsAttachedLogger(t *testing.T) {
	logger := zerolog.New(io.Discard).With().Str(FieldRoomID, "room-1").Logger()
	ctx := WithLogger(context.Background(), &logger)

	assert.Equal(t, &logger, Ctx(ctx))
	Ctx(ctx).Info().Msg("chained on the context logger")
}
