package sensorloop

// Quantity identifies the physical quantity a decoded value represents.
type Quantity uint8

const (
	QuantityDistance Quantity = iota
	QuantityWetness
	QuantityTemperature
)

func (q Quantity) String() string {
	switch q {
	case QuantityDistance:
		return "distance"
	case QuantityWetness:
		return "wetness"
	case QuantityTemperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// Unit returns the measurement unit readings of this quantity are expressed in.
func (q Quantity) Unit() string {
	switch q {
	case QuantityDistance:
		return "mm"
	case QuantityWetness:
		return "%"
	case QuantityTemperature:
		return "°C"
	default:
		return ""
	}
}

// Reading is a single decoded physical value.
type Reading struct {
	Quantity Quantity
	Value    float64
}

// DecodeFunc turns a raw payload of the sensor's declared length into one or
// more readings. Implementations must be pure and must not touch the bus.
type DecodeFunc func(payload []byte) ([]Reading, error)

// Sink receives decoded readings and cycle faults. Implementations must not
// block; the state machine calls them from its cooperative step.
type Sink interface {
	Publish(Reading)
	Fault(error)
}

// SinkFuncs adapts plain functions to the Sink interface so observers can be
// wired without requiring any dedicated type. Nil functions are skipped.
type SinkFuncs struct {
	PublishFunc func(Reading)
	FaultFunc   func(error)
}

func (s SinkFuncs) Publish(r Reading) {
	if s.PublishFunc != nil {
		s.PublishFunc(r)
	}
}

func (s SinkFuncs) Fault(err error) {
	if s.FaultFunc != nil {
		s.FaultFunc(err)
	}
}
