package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const currentHeaderDBVersion = 1

func checkHeaderDBVersion(dbPath string) (doesVersionFileExist bool, err error) {
	versionBytes, err := os.ReadFile(versionFilePath(dbPath))
	if err != nil {
		if os.IsNotExist(err) { // If version file doesn't exist, we assume that the database is new
			return false, nil
		}
		return false, errors.WithStack(err)
	}

	headerDBVersion, err := strconv.Atoi(strings.TrimSpace(string(versionBytes)))
	if err != nil {
		return true, errors.Wrapf(err, "invalid header database version file")
	}

	if headerDBVersion != currentHeaderDBVersion {
		return true, errors.Errorf("Invalid header database version %d. Expected version: %d",
			headerDBVersion, currentHeaderDBVersion)
	}

	return true, nil
}

func createHeaderDBVersionFile(dbPath string) error {
	err := os.WriteFile(versionFilePath(dbPath), []byte(strconv.Itoa(currentHeaderDBVersion)), 0600)
	return errors.WithStack(err)
}

func versionFilePath(dbPath string) string {
	return filepath.Join(dbPath, "version")
}
