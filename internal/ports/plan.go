package ports

import "github.com/ijt/xylem/internal/types"

type PlanWriterPort interface {
	WritePlan(path string, plan types.InstallPlan) error
}

type PlanReaderPort interface {
	ReadPlan(path string) (types.InstallPlan, error)
}

type PlatformConfigPort interface {
	LoadPlatforms(path string) (types.PlatformConfig, error)
}
