package ports

import (
	"statguide/domain/profiling"
)

// ProfilerPort classifies the columns of an uploaded table
type ProfilerPort interface {
	Profile(table profiling.RawTable) profiling.Profile
}
