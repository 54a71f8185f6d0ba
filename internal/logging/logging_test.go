package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Console: &buf, NoColor: true})

	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "loud", Console: &buf, NoColor: true})

	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Options{Console: &buf, NoColor: true}), "queue")

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "component=queue")
}
