package store_test

import (
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/notary-scan/internal/model"
	"github.com/CZERTAINLY/notary-scan/internal/store"
	"github.com/CZERTAINLY/notary-scan/internal/store/bom"
	"github.com/CZERTAINLY/notary-scan/internal/store/sqlite"

	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var testCases = []struct {
		scenario string
		given    model.StoreConfig
		then     any
		err      string
	}{
		{
			scenario: "sqlite",
			given:    model.StoreConfig{Driver: model.StoreSQLite, DSN: filepath.Join(dir, "notary.sqlite")},
			then:     &sqlite.Store{},
		},
		{
			scenario: "bom",
			given:    model.StoreConfig{Driver: model.StoreBOM, BOMOutput: filepath.Join(dir, "bom.json")},
			then:     &bom.Store{},
		},
		{
			scenario: "bom bad path",
			given:    model.StoreConfig{Driver: model.StoreBOM, BOMOutput: filepath.Join(dir, "no", "such", "bom.json")},
			err:      "opening bom store: creating bom output: ",
		},
		{
			scenario: "unsupported",
			given:    model.StoreConfig{Driver: "mongo"},
			err:      `unsupported store driver "mongo", expected one of [postgres sqlite bom pubsub]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			st, err := store.Open(t.Context(), tc.given)
			if tc.err != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.err)
				require.Nil(t, st)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tc.then, st)
			require.NoError(t, st.Close())
		})
	}
}
