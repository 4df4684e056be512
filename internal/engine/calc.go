package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingsantohq/subpub/internal/config"
)

// CalcOp selects the arithmetic a Calc applies to a weight.
type CalcOp int

const (
	CalcIdentity CalcOp = iota
	CalcAdd
	CalcDivide
)

// Calc is a weight transform configured by weight_calc or degrade_calc.
type Calc struct {
	Op CalcOp
	N  float64
}

// ParseCalc reads a transform from its configuration value: nil is the
// identity, an integer n adds n and a string "/n" divides by n.
func ParseCalc(raw any) (Calc, error) {
	if raw == nil {
		return Calc{Op: CalcIdentity}, nil
	}
	if n, ok := config.ToInt(raw); ok {
		return Calc{Op: CalcAdd, N: float64(n)}, nil
	}
	s, ok := raw.(string)
	if !ok || !strings.HasPrefix(s, "/") {
		return Calc{}, config.Errorf("calc", "bad calc %v: expected integer or \"/n\"", raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s[1:]), 64)
	if err != nil {
		return Calc{}, config.Errorf("calc", "bad divisor in %q: %v", s, err)
	}
	if n == 0 {
		return Calc{}, config.Errorf("calc", "bad divisor in %q: division by zero", s)
	}
	return Calc{Op: CalcDivide, N: n}, nil
}

func (c Calc) Apply(weight float64) float64 {
	switch c.Op {
	case CalcAdd:
		return weight + c.N
	case CalcDivide:
		return weight / c.N
	default:
		return weight
	}
}

func (c Calc) String() string {
	switch c.Op {
	case CalcAdd:
		return fmt.Sprintf("%+g", c.N)
	case CalcDivide:
		return "/" + strconv.FormatFloat(c.N, 'g', -1, 64)
	default:
		return "identity"
	}
}
