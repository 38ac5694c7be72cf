package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/envstruct"
	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestRun_configErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     testEnv
		wantErr error
	}{
		{
			name:    "missing api key",
			env:     testEnv{"LIFEPLAN_ADDR": "localhost:0", "LIFEPLAN_SQLITE_URL": ":memory:"},
			wantErr: envstruct.ErrEnvNotSet,
		},
		{
			name: "unknown store",
			env: testEnv{
				"LIFEPLAN_ADDR": "localhost:0", "OPENAI_API_KEY": "k", "LIFEPLAN_STORE": "mongo",
			},
			wantErr: recordstore.ErrUnknownBackend,
		},
		{
			name: "bad timeout",
			env: testEnv{
				"LIFEPLAN_ADDR": "localhost:0", "OPENAI_API_KEY": "k", "LIFEPLAN_EXTRACT_TIMEOUT": "soon",
			},
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name: "missing catalog",
			env: testEnv{
				"LIFEPLAN_ADDR": "localhost:0", "OPENAI_API_KEY": "k",
				"LIFEPLAN_CATALOG_PATH": filepath.Join(os.TempDir(), "does-not-exist.yaml"),
			},
			wantErr: os.ErrNotExist,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), testhelpers.NewLogger(io.Discard), tt.env.lookup)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_customCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`questions:
  - id: only
    moduleId: m
    moduleTitle: Only module
    order: 1
    required: true
    prompt: "What is the one thing?"
`), 0o600))
	server := startTestServer(t, testEnv{"LIFEPLAN_CATALOG_PATH": path})

	var body stateBody
	_, err := server.Client().GetJSON(context.Background(), "/api/state?userId=user_1", &body)
	require.NoError(t, err)
	require.Len(t, body.State.Answers, 1)
	require.Contains(t, body.Instructions, "What is the one thing?")
	require.NotEqual(t, catalog.Default().Len(), len(body.State.Answers))
}
