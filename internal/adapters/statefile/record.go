package statefile

import (
	"fmt"

	"github.com/galah-project/galah-cli/internal/domain"
)

const currentRecordVersion = 1

// sessionRecord is the on-disk shape of a persisted session. Versioned so
// the format can evolve without guessing at old files.
type sessionRecord struct {
	Version  int            `toml:"version"`
	Identity string         `toml:"identity"`
	Cookies  []cookieRecord `toml:"cookies,omitempty"`
}

type cookieRecord struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

func (r sessionRecord) validateVersion() error {
	if r.Version > currentRecordVersion {
		return fmt.Errorf("unsupported session record version %d (current %d)", r.Version, currentRecordVersion)
	}
	return nil
}

func (r sessionRecord) toState() domain.SessionState {
	state := domain.SessionState{Identity: r.Identity}
	for _, c := range r.Cookies {
		state.Cookies = append(state.Cookies, domain.Cookie{Name: c.Name, Value: c.Value})
	}
	return state
}

func toRecord(state domain.SessionState) sessionRecord {
	record := sessionRecord{
		Version:  currentRecordVersion,
		Identity: state.Identity,
	}
	for _, c := range state.Cookies {
		record.Cookies = append(record.Cookies, cookieRecord{Name: c.Name, Value: c.Value})
	}
	return record
}
