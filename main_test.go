package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Benny93/contexter-go/cmd"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/ingestion"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"GateFailed", fmt.Errorf("%w: dep sanity", ingestion.ErrGateFailed), 3},
		{"ConfigError", &config.Error{Field: "token_limit", Msg: "must be positive"}, 2},
		{"Usage", fmt.Errorf("%w: unexpected argument", cmd.ErrUsage), 2},
		{"Other", errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
