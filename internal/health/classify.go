package health

import (
	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/probe"
)

func Classify(o probe.Outcome) domain.HealthState {
	if !o.Reachable {
		return domain.Down
	}
	if o.Kind == domain.KindHTTP && o.Role == probe.Remote {
		return domain.Degraded
	}
	return domain.Up
}
