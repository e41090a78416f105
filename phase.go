package assetcache

// Phase is a lifecycle state of a Manager.
type Phase uint8

const (
	// PhaseParsed is the initial state before any install.
	PhaseParsed Phase = iota
	// PhaseInstalling is set while Install runs.
	PhaseInstalling
	// PhaseInstalled is set after a successful Install.
	PhaseInstalled
	// PhaseActivating is set while Activate runs.
	PhaseActivating
	// PhaseActivated is set once Activate completes; fetches are served from cache.
	PhaseActivated
	// PhaseRedundant is set after a failed Install. Install may be retried.
	PhaseRedundant
)

func (p Phase) String() string {
	switch p {
	case PhaseParsed:
		return "parsed"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActivating:
		return "activating"
	case PhaseActivated:
		return "activated"
	case PhaseRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}
