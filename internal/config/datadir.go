package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
)

// DefaultDataDirName is the folder created under ~/Documents.
const DefaultDataDirName = "PromoClaimData"

// ResolveDataDir picks the data directory and makes sure it exists.
//
// Priority: explicit flag, PROMOCLAIM_DATA_DIR, custom_data_path from the
// JSON config (only when its parent exists), ~/Documents/PromoClaimData and
// finally ./data.
func ResolveDataDir(flagDir, envDir, customPath, home string) (string, error) {
	for _, dir := range []string{flagDir, envDir} {
		if dir != "" {
			return ensureAbs(dir)
		}
	}

	if customPath != "" {
		if st, err := os.Stat(filepath.Dir(customPath)); err == nil && st.IsDir() {
			return ensureAbs(customPath)
		}
	}

	if home != "" {
		if dir, err := ensureAbs(filepath.Join(home, "Documents", DefaultDataDirName)); err == nil {
			return dir, nil
		}
	}

	return ensureAbs("data")
}

func ensureAbs(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: data dir %s: %v", common.ErrConfiguration, dir, err)
	}
	if _, err := filex.EnsureDir(abs); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return abs, nil
}
