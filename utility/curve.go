package utility

import (
	"fmt"
	"math"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Curve shapes a normalized necessity in [0,1] into a score. Curves must be
// monotonic and non-negative over [0,1]; ValidateCurve checks both.
type Curve interface {
	Evaluate(x float64) float64
}

// Linear is the identity curve.
type Linear struct{}

func (Linear) Evaluate(x float64) float64 { return x }

// Polynomial is y = M*(x-C)^K + B.
type Polynomial struct {
	M, K, B, C float64
}

func (p Polynomial) Evaluate(x float64) float64 {
	return p.M*math.Pow(x-p.C, p.K) + p.B
}

// Point is one key of a piecewise-linear curve.
type Point struct {
	X, Y float64
}

// Points interpolates linearly between keys sorted by X and holds the end
// values outside them.
type Points []Point

func (ps Points) Evaluate(x float64) float64 {
	if len(ps) == 0 {
		return 0
	}
	if x <= ps[0].X {
		return ps[0].Y
	}
	for i := 1; i < len(ps); i++ {
		if x <= ps[i].X {
			a, b := ps[i-1], ps[i]
			if b.X == a.X {
				return b.Y
			}
			t := (x - a.X) / (b.X - a.X)
			return a.Y + t*(b.Y-a.Y)
		}
	}
	return ps[len(ps)-1].Y
}

// curveEnv is the expression environment: the necessity is exposed as x.
type curveEnv struct {
	X float64 `expr:"x"`
}

// ExprCurve evaluates a compiled expression over x, e.g. "x ** 2" or
// "1 - (1 - x) ** 3".
type ExprCurve struct {
	Source  string
	program *vm.Program
}

// CompileExpr compiles src into bytecode once; evaluation only runs the VM.
func CompileExpr(src string) (*ExprCurve, error) {
	prog, err := expr.Compile(src, expr.Env(curveEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile curve %q: %w", src, err)
	}
	return &ExprCurve{Source: src, program: prog}, nil
}

func (c *ExprCurve) Evaluate(x float64) float64 {
	out, err := vm.Run(c.program, curveEnv{X: x})
	if err != nil {
		return 0
	}
	v, ok := out.(float64)
	if !ok {
		return 0
	}
	return v
}

const curveSamples = 64

// ValidateCurve samples c over [0,1] and rejects curves that go negative,
// produce non-finite values or change direction.
func ValidateCurve(c Curve) error {
	if c == nil {
		return fmt.Errorf("nil curve")
	}
	const eps = 1e-9
	rising, falling := false, false
	prev := 0.0
	for i := 0; i <= curveSamples; i++ {
		x := float64(i) / curveSamples
		y := c.Evaluate(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("curve not finite at x=%.3f", x)
		}
		if y < -eps {
			return fmt.Errorf("curve negative at x=%.3f: %v", x, y)
		}
		if i > 0 {
			switch {
			case y > prev+eps:
				rising = true
			case y < prev-eps:
				falling = true
			}
			if rising && falling {
				return fmt.Errorf("curve not monotonic near x=%.3f", x)
			}
		}
		prev = y
	}
	return nil
}

// CurveSpec is the configuration form of a curve.
type CurveSpec struct {
	Kind   string       `yaml:"kind" json:"kind"` // linear | polynomial | points | expr
	M      float64      `yaml:"m,omitempty" json:"m,omitempty"`
	K      float64      `yaml:"k,omitempty" json:"k,omitempty"`
	B      float64      `yaml:"b,omitempty" json:"b,omitempty"`
	C      float64      `yaml:"c,omitempty" json:"c,omitempty"`
	Points [][2]float64 `yaml:"points,omitempty" json:"points,omitempty"`
	Expr   string       `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// Build turns the spec into a validated Curve. An empty kind means linear.
func (s CurveSpec) Build() (Curve, error) {
	var c Curve
	switch s.Kind {
	case "", "linear":
		c = Linear{}
	case "polynomial":
		c = Polynomial{M: s.M, K: s.K, B: s.B, C: s.C}
	case "points":
		if len(s.Points) == 0 {
			return nil, fmt.Errorf("points curve needs at least one key")
		}
		ps := make(Points, len(s.Points))
		for i, p := range s.Points {
			ps[i] = Point{X: p[0], Y: p[1]}
		}
		sort.Slice(ps, func(i, j int) bool { return ps[i].X < ps[j].X })
		c = ps
	case "expr":
		ec, err := CompileExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		c = ec
	default:
		return nil, fmt.Errorf("unknown curve kind %q", s.Kind)
	}
	if err := ValidateCurve(c); err != nil {
		return nil, err
	}
	return c, nil
}
