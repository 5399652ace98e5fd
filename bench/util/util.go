// Package util tracks the last committed version of a tree database
// directory so interrupted builds can be detected and resumed.
package util

import (
	"encoding/json"
	"fmt"
	"os"
)

type info struct {
	Version int64 `json:"version"`
}

// LoadVersion reads the last committed version from the info.json file in
// dbDir, or 0 if none has been written yet.
func LoadVersion(dbDir string) (int64, error) {
	bz, err := os.ReadFile(fmt.Sprintf("%s/info.json", dbDir))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var i info
	if err := json.Unmarshal(bz, &i); err != nil {
		return 0, err
	}
	return i.Version, nil
}

// SaveVersion records version in the info.json file in dbDir.
func SaveVersion(dbDir string, version int64) error {
	i := info{Version: version}
	bz, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fmt.Sprintf("%s/info.json", dbDir), bz, 0o644)
}
