package optimize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FloatParameter is a named scalar optimization parameter with
// optional bounds and a change callback.
type FloatParameter interface {
	Name() string
	Get() float64
	Set(float64)
	SetMin(float64)
	SetMax(float64)
	GetMin() float64
	GetMax() float64
	// SetOnChange registers a callback invoked every time the
	// value changes; used to invalidate caches upstream.
	SetOnChange(func())
	InRange() bool
	ValueInRange(float64) bool
	String() string
}

// NewFloatParameter creates a FloatParameter backed by the pointed-to
// value.
type NewFloatParameter func(par *float64, name string) FloatParameter

// FloatParameters is an ordered collection of float parameters; the
// order defines the positional parameter vector seen by optimizers.
type FloatParameters []FloatParameter

// Append adds a parameter to the collection.
func (p *FloatParameters) Append(par FloatParameter) {
	*p = append(*p, par)
}

// Names returns all parameter names, reusing is if large enough.
func (p *FloatParameters) Names(is []string) (s []string) {
	if is == nil {
		s = make([]string, len(*p))
	} else {
		s = is
	}
	for i, par := range *p {
		s[i] = par.Name()
	}
	return
}

// Values returns all parameter values, reusing iv if large enough.
func (p *FloatParameters) Values(iv []float64) (v []float64) {
	if iv == nil {
		v = make([]float64, len(*p))
	} else {
		v = iv
	}
	for i, par := range *p {
		v[i] = par.Get()
	}
	return
}

// SetValues sets all parameter values from a vector.
func (p *FloatParameters) SetValues(v []float64) error {
	if len(v) != len(*p) {
		return fmt.Errorf("expected %d parameter values, got %d", len(*p), len(v))
	}
	for i, par := range *p {
		par.Set(v[i])
	}
	return nil
}

// ValuesInRange tests if every value of the vector is within the
// bounds of the corresponding parameter.
func (p *FloatParameters) ValuesInRange(vals []float64) bool {
	if len(vals) != len(*p) {
		panic("incorrect number of parameters")
	}
	for i, par := range *p {
		if !par.ValueInRange(vals[i]) {
			return false
		}
	}
	return true
}

// InRange tests if every parameter is within its bounds.
func (p *FloatParameters) InRange() bool {
	for _, par := range *p {
		if !par.InRange() {
			return false
		}
	}
	return true
}

// ByName returns a parameter by its name, nil if not present.
func (p *FloatParameters) ByName(name string) FloatParameter {
	for _, par := range *p {
		if par.Name() == name {
			return par
		}
	}
	return nil
}

// NamesString returns tab-separated parameter names.
func (p *FloatParameters) NamesString() (s string) {
	for i, par := range *p {
		if i != 0 {
			s += "\t"
		}
		s += par.Name()
	}
	return
}

// ValuesString returns tab-separated parameter values.
func (p *FloatParameters) ValuesString() (s string) {
	for i, par := range *p {
		if i != 0 {
			s += "\t"
		}
		s += par.String()
	}
	return
}

// MarshalJSON encodes the parameters as a JSON object preserving
// parameter order.
func (p FloatParameters) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, par := range p {
		if i != 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(par.Name())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(par.Get())
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON sets parameter values from a JSON object; parameters
// absent from the object keep their value.
func (p *FloatParameters) UnmarshalJSON(data []byte) error {
	values := make(map[string]float64)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	for _, par := range *p {
		if v, ok := values[par.Name()]; ok {
			par.Set(v)
		}
	}
	return nil
}

// BasicFloatParameter is the default FloatParameter implementation,
// backed by a pointer into the model state.
type BasicFloatParameter struct {
	*float64
	name     string
	min      float64
	max      float64
	onChange func()
}

// NewBasicFloatParameter creates an unbounded parameter backed by par.
func NewBasicFloatParameter(par *float64, name string) *BasicFloatParameter {
	return &BasicFloatParameter{
		float64: par,
		name:    name,
		min:     math.Inf(-1),
		max:     math.Inf(+1),
	}
}

// BasicFloatParameterGenerator is the NewFloatParameter for
// BasicFloatParameter.
func BasicFloatParameterGenerator(par *float64, name string) FloatParameter {
	return NewBasicFloatParameter(par, name)
}

func (p *BasicFloatParameter) Name() string { return p.name }

func (p *BasicFloatParameter) Get() float64 { return *p.float64 }

func (p *BasicFloatParameter) Set(v float64) {
	if *p.float64 == v {
		return
	}
	*p.float64 = v
	if p.onChange != nil {
		p.onChange()
	}
}

func (p *BasicFloatParameter) SetMin(min float64) { p.min = min }
func (p *BasicFloatParameter) SetMax(max float64) { p.max = max }
func (p *BasicFloatParameter) GetMin() float64    { return p.min }
func (p *BasicFloatParameter) GetMax() float64    { return p.max }

func (p *BasicFloatParameter) SetOnChange(f func()) { p.onChange = f }

func (p *BasicFloatParameter) ValueInRange(v float64) bool {
	return v >= p.min && v <= p.max
}

func (p *BasicFloatParameter) InRange() bool {
	return p.ValueInRange(*p.float64)
}

func (p *BasicFloatParameter) String() string {
	return strconv.FormatFloat(*p.float64, 'f', 6, 64)
}
