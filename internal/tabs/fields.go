package tabs

import (
	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/signal"
)

// FieldSet exposes each model-specific field as its own signal. Every field
// suppresses equal writes, which lets two sets be bound in both directions.
type FieldSet struct {
	Intercept   *signal.Signal[float64]
	Contrast    *signal.Signal[float64]
	RandomWidth *signal.Signal[float64]
	Basis       *signal.Signal[string]
	Formula     *signal.Signal[string]
	Projection  *signal.Signal[string]
	Coding      *signal.Signal[params.Coding]
}

func NewFieldSet(f params.Fields) *FieldSet {
	return &FieldSet{
		Intercept:   signal.NewComparable(f.Intercept),
		Contrast:    signal.NewComparable(f.Contrast),
		RandomWidth: signal.NewComparable(f.RandomWidth),
		Basis:       signal.NewComparable(f.Basis),
		Formula:     signal.NewComparable(f.Formula),
		Projection:  signal.NewComparable(f.Projection),
		Coding:      signal.NewComparable(f.Coding),
	}
}

// Fields reads the current value of every field.
func (fs *FieldSet) Fields() params.Fields {
	return params.Fields{
		Intercept:   fs.Intercept.Get(),
		Contrast:    fs.Contrast.Get(),
		RandomWidth: fs.RandomWidth.Get(),
		Basis:       fs.Basis.Get(),
		Formula:     fs.Formula.Get(),
		Projection:  fs.Projection.Get(),
		Coding:      fs.Coding.Get(),
	}
}

// Load writes every field of f. Fields that already hold the value stay silent.
func (fs *FieldSet) Load(f params.Fields) {
	fs.Intercept.Set(f.Intercept)
	fs.Contrast.Set(f.Contrast)
	fs.RandomWidth.Set(f.RandomWidth)
	fs.Basis.Set(f.Basis)
	fs.Formula.Set(f.Formula)
	fs.Projection.Set(f.Projection)
	fs.Coding.Set(f.Coding)
}

// Continuous returns the drag-style numeric fields.
func (fs *FieldSet) Continuous() []signal.Observable {
	return []signal.Observable{fs.Intercept, fs.Contrast, fs.RandomWidth}
}

// Discrete returns the fields edited as whole values: text and choices.
func (fs *FieldSet) Discrete() []signal.Observable {
	return []signal.Observable{fs.Basis, fs.Formula, fs.Projection, fs.Coding}
}

// bindTo copies every change of fs into the set target returns. A nil target
// drops the change.
func (fs *FieldSet) bindTo(target func() *FieldSet) func() {
	cancels := []func(){
		bind(fs.Intercept, target, func(f *FieldSet) *signal.Signal[float64] { return f.Intercept }),
		bind(fs.Contrast, target, func(f *FieldSet) *signal.Signal[float64] { return f.Contrast }),
		bind(fs.RandomWidth, target, func(f *FieldSet) *signal.Signal[float64] { return f.RandomWidth }),
		bind(fs.Basis, target, func(f *FieldSet) *signal.Signal[string] { return f.Basis }),
		bind(fs.Formula, target, func(f *FieldSet) *signal.Signal[string] { return f.Formula }),
		bind(fs.Projection, target, func(f *FieldSet) *signal.Signal[string] { return f.Projection }),
		bind(fs.Coding, target, func(f *FieldSet) *signal.Signal[params.Coding] { return f.Coding }),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func bind[T any](src *signal.Signal[T], target func() *FieldSet, field func(*FieldSet) *signal.Signal[T]) func() {
	return src.Subscribe(func(v T) {
		if dst := target(); dst != nil {
			field(dst).Set(v)
		}
	})
}
