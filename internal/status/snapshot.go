package status

// Snapshot is the health state at one instant. It is a plain value.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	FailedReads    uint16
	SetpointW      uint32
}

// InError reports whether the seconds counter should run.
func (s Snapshot) InError() bool {
	return s.Health != HealthOK && s.Health != HealthInactive
}

// View is the JSON form used by the HTTP API.
type View struct {
	Health         string `json:"health"`
	HealthCode     uint16 `json:"health_code"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
	FailedReads    uint16 `json:"failed_reads"`
	SetpointW      uint32 `json:"setpoint_w"`
}

func (s Snapshot) View() View {
	return View{
		Health:         HealthName(s.Health),
		HealthCode:     s.Health,
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
		FailedReads:    s.FailedReads,
		SetpointW:      s.SetpointW,
	}
}
