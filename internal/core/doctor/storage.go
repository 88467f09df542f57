package doctor

import (
	"context"
	"fmt"
)

// StorageInfo describes the active persistence backends. Schema versions are
// zero for backends without a schema.
type StorageInfo struct {
	Backend       string
	Drafts        string
	SchemaVersion int
	LatestSchema  int
}

// StorageCheck reports the persistence backends and whether the database
// schema is current.
type StorageCheck struct {
	info func(ctx context.Context) (StorageInfo, error)
}

// NewStorageCheck creates a storage check. info is typically App.StorageInfo.
func NewStorageCheck(info func(ctx context.Context) (StorageInfo, error)) *StorageCheck {
	return &StorageCheck{info: info}
}

func (c *StorageCheck) Name() string {
	return "Storage"
}

func (c *StorageCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := c.info(ctx)
	if err != nil {
		result.add("backend", StatusFail, err.Error())
		return result
	}

	result.add("backend", StatusPass, info.Backend)
	if info.Drafts != "" {
		result.add("drafts", StatusPass, info.Drafts)
	}

	if info.LatestSchema == 0 {
		return result
	}
	switch {
	case info.SchemaVersion == info.LatestSchema:
		result.add("schema", StatusPass, fmt.Sprintf("version %d", info.SchemaVersion))
	case info.SchemaVersion > info.LatestSchema:
		result.add("schema", StatusWarn,
			fmt.Sprintf("version %d is newer than this binary (%d)", info.SchemaVersion, info.LatestSchema))
	default:
		result.add("schema", StatusFail,
			fmt.Sprintf("version %d, expected %d", info.SchemaVersion, info.LatestSchema))
	}
	return result
}
