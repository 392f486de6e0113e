// Copyright 2025 Certen Protocol
//
// Evaluator walks an expr.Node tree against a bound context. Evaluation is
// pure and total up to the defined error conditions (EvalError,
// NumericError): it never touches the filesystem, environment, or an
// unfrozen wall clock.
package expr

import (
	"crypto/ed25519"
	"encoding/base64"
	"math/big"
	"strings"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Context is the bound-variable environment an expression is evaluated
// against, plus the executor-frozen "now" every now()/age() call reuses.
type Context struct {
	Vars value.Value // must be a KindMap
	Now  time.Time
}

// Eval evaluates a node to a Value, or returns a kernel error. Errors
// returned here are contained by the caller: a gate whose expression fails
// counts as false with the error recorded, per the Chip evaluator's rule.
func Eval(n Node, ctx *Context) (value.Value, error) {
	switch t := n.(type) {
	case Literal:
		return t.Value, nil
	case Var:
		return value.Path(ctx.Vars, t.Path), nil
	case Unary:
		return evalUnary(t, ctx)
	case Binary:
		return evalBinary(t, ctx)
	case If:
		cond, err := Eval(t.Cond, ctx)
		if err != nil {
			return value.Null(), err
		}
		if cond.Truthy() {
			return Eval(t.Then, ctx)
		}
		return Eval(t.Else, ctx)
	case Call:
		return evalCall(t, ctx)
	default:
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "unknown_node", "unrecognized AST node %T", n)
	}
}

func evalUnary(u Unary, ctx *Context) (value.Value, error) {
	x, err := Eval(u.X, ctx)
	if err != nil {
		return value.Null(), err
	}
	switch u.Op {
	case OpNot:
		return value.Bool(!x.Truthy()), nil
	case OpNeg:
		r, ok := x.AsDecimal()
		if !ok {
			return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "neg requires a number")
		}
		neg := new(big.Rat).Neg(r)
		if x.Kind() == value.KindInt {
			i, _ := x.AsInt()
			return value.Int(-i), nil
		}
		return value.Decimal(neg), nil
	default:
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "unknown_op", "unary op %q", u.Op)
	}
}

func evalBinary(b Binary, ctx *Context) (value.Value, error) {
	// and/or short-circuit left-to-right before evaluating the right side.
	if b.Op == OpAnd {
		a, err := Eval(b.A, ctx)
		if err != nil {
			return value.Null(), err
		}
		if !a.Truthy() {
			return value.Bool(false), nil
		}
		right, err := Eval(b.B, ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(right.Truthy()), nil
	}
	if b.Op == OpOr {
		a, err := Eval(b.A, ctx)
		if err != nil {
			return value.Null(), err
		}
		if a.Truthy() {
			return value.Bool(true), nil
		}
		right, err := Eval(b.B, ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(right.Truthy()), nil
	}

	a, err := Eval(b.A, ctx)
	if err != nil {
		return value.Null(), err
	}
	rv, err := Eval(b.B, ctx)
	if err != nil {
		return value.Null(), err
	}

	switch b.Op {
	case OpEq:
		return value.Bool(value.Equal(a, rv)), nil
	case OpNe:
		return value.Bool(!value.Equal(a, rv)), nil
	case OpLt, OpLe, OpGt, OpGe:
		cmp, ok := value.Compare(a, rv)
		if !ok {
			return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "%s requires two numbers, two timestamps, or two strings", b.Op)
		}
		switch b.Op {
		case OpLt:
			return value.Bool(cmp < 0), nil
		case OpLe:
			return value.Bool(cmp <= 0), nil
		case OpGt:
			return value.Bool(cmp > 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	case OpAdd, OpSub, OpMul, OpDiv:
		return arith(b.Op, a, rv)
	case OpMod:
		return modInt(a, rv)
	default:
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "unknown_op", "binary op %q", b.Op)
	}
}

func arith(op BinaryOp, a, b value.Value) (value.Value, error) {
	ra, ok1 := a.AsDecimal()
	rb, ok2 := b.AsDecimal()
	if !ok1 || !ok2 {
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "%s requires two numbers", op)
	}
	var out *big.Rat
	switch op {
	case OpAdd:
		out = new(big.Rat).Add(ra, rb)
	case OpSub:
		out = new(big.Rat).Sub(ra, rb)
	case OpMul:
		out = new(big.Rat).Mul(ra, rb)
	case OpDiv:
		if rb.Sign() == 0 {
			return value.Null(), kernelerr.New(kernelerr.NumericError, "division by zero")
		}
		out = new(big.Rat).Quo(ra, rb)
	}
	if a.Kind() == value.KindInt && b.Kind() == value.KindInt && out.IsInt() {
		return value.Int(out.Num().Int64()), nil
	}
	return value.Decimal(out), nil
}

func modInt(a, b value.Value) (value.Value, error) {
	ai, ok1 := a.AsInt()
	bi, ok2 := b.AsInt()
	if !ok1 || !ok2 {
		return value.Null(), kernelerr.New(kernelerr.NumericError, "mod is defined on integers only")
	}
	if bi == 0 {
		return value.Null(), kernelerr.New(kernelerr.NumericError, "modulus by zero")
	}
	return value.Int(ai % bi), nil
}

func evalCall(c Call, ctx *Context) (value.Value, error) {
	args := make([]value.Value, len(c.Args))
	for i, an := range c.Args {
		v, err := Eval(an, ctx)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	fn, ok := builtins[c.Func]
	if !ok {
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "unknown_function", "no such built-in: %s", c.Func)
	}
	return fn(ctx, args)
}

type builtinFunc func(ctx *Context, args []value.Value) (value.Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"now":             bNow,
		"age":             bAge,
		"before":          bBefore,
		"after":           bAfter,
		"time_bucket":     bTimeBucket,
		"add":             bAdd,
		"sub":             bSub,
		"mul":             bMul,
		"div":             bDiv,
		"mod":             bMod,
		"length":          bLength,
		"has":             bHas,
		"get":             bGet,
		"sum":             bSum,
		"min":             bMin,
		"max":             bMax,
		"verify_ed25519":  bVerifyEd25519,
		"sha256":          bSha256,
	}
}

func bNow(ctx *Context, args []value.Value) (value.Value, error) {
	return value.Timestamp(ctx.Now), nil
}

func bAge(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr("age", 1, len(args))
	}
	ts, ok := args[0].AsTimestamp()
	if !ok {
		return value.Null(), typeErr("age requires a timestamp")
	}
	return value.Int(int64(ctx.Now.Sub(ts).Seconds())), nil
}

func bBefore(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr("before", 2, len(args))
	}
	a, ok1 := args[0].AsTimestamp()
	b, ok2 := args[1].AsTimestamp()
	if !ok1 || !ok2 {
		return value.Null(), typeErr("before requires two timestamps")
	}
	return value.Bool(a.Before(b)), nil
}

func bAfter(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr("after", 2, len(args))
	}
	a, ok1 := args[0].AsTimestamp()
	b, ok2 := args[1].AsTimestamp()
	if !ok1 || !ok2 {
		return value.Null(), typeErr("after requires two timestamps")
	}
	return value.Bool(a.After(b)), nil
}

func bTimeBucket(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr("time_bucket", 2, len(args))
	}
	ts, ok := args[0].AsTimestamp()
	if !ok {
		return value.Null(), typeErr("time_bucket requires a timestamp")
	}
	unit, ok := args[1].AsString()
	if !ok {
		return value.Null(), typeErr("time_bucket requires a unit string")
	}
	ts = ts.UTC()
	switch unit {
	case "minute":
		return value.Timestamp(time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), 0, 0, time.UTC)), nil
	case "hour":
		return value.Timestamp(time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)), nil
	case "day":
		return value.Timestamp(time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)), nil
	default:
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "time_bucket unit must be minute, hour, or day")
	}
}

func bAdd(ctx *Context, args []value.Value) (value.Value, error) { return arithN(args, "add") }
func bSub(ctx *Context, args []value.Value) (value.Value, error) { return arithN(args, "sub") }
func bMul(ctx *Context, args []value.Value) (value.Value, error) { return arithN(args, "mul") }
func bDiv(ctx *Context, args []value.Value) (value.Value, error) { return arithN(args, "div") }
func bMod(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr("mod", 2, len(args))
	}
	return modInt(args[0], args[1])
}

func arithN(args []value.Value, name string) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr(name, 2, len(args))
	}
	var op BinaryOp
	switch name {
	case "add":
		op = OpAdd
	case "sub":
		op = OpSub
	case "mul":
		op = OpMul
	case "div":
		op = OpDiv
	}
	return arith(op, args[0], args[1])
}

func bLength(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr("length", 1, len(args))
	}
	n, ok := value.Length(args[0])
	if !ok {
		return value.Null(), typeErr("length requires a list, string, or mapping")
	}
	return value.Int(n), nil
}

func bHas(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null(), argErr("has", 2, len(args))
	}
	m, ok := args[0].AsMap()
	if !ok {
		return value.Null(), typeErr("has requires a mapping")
	}
	k, ok := args[1].AsString()
	if !ok {
		return value.Null(), typeErr("has requires a string key")
	}
	_, present := m[k]
	return value.Bool(present), nil
}

func bGet(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Null(), argErr("get", 3, len(args))
	}
	m, ok := args[0].AsMap()
	if !ok {
		return value.Null(), typeErr("get requires a mapping")
	}
	k, ok := args[1].AsString()
	if !ok {
		return value.Null(), typeErr("get requires a string key")
	}
	if v, present := m[k]; present {
		return v, nil
	}
	return args[2], nil
}

func bSum(ctx *Context, args []value.Value) (value.Value, error) { return aggregate(args, "sum") }
func bMin(ctx *Context, args []value.Value) (value.Value, error) { return aggregate(args, "min") }
func bMax(ctx *Context, args []value.Value) (value.Value, error) { return aggregate(args, "max") }

func aggregate(args []value.Value, name string) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr(name, 1, len(args))
	}
	list, ok := args[0].AsList()
	if !ok {
		return value.Null(), typeErr(name + " requires a list")
	}
	if len(list) == 0 {
		if name == "sum" {
			return value.Int(0), nil
		}
		return value.Null(), kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "%s of an empty list is undefined", name)
	}
	allInt := true
	acc, ok := list[0].AsDecimal()
	if !ok {
		return value.Null(), typeErr(name + " requires a list of numbers")
	}
	if list[0].Kind() != value.KindInt {
		allInt = false
	}
	for _, v := range list[1:] {
		r, ok := v.AsDecimal()
		if !ok {
			return value.Null(), typeErr(name + " requires a list of numbers")
		}
		if v.Kind() != value.KindInt {
			allInt = false
		}
		switch name {
		case "sum":
			acc = new(big.Rat).Add(acc, r)
		case "min":
			if r.Cmp(acc) < 0 {
				acc = r
			}
		case "max":
			if r.Cmp(acc) > 0 {
				acc = r
			}
		}
	}
	if allInt && acc.IsInt() {
		return value.Int(acc.Num().Int64()), nil
	}
	return value.Decimal(acc), nil
}

func bVerifyEd25519(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Null(), argErr("verify_ed25519", 3, len(args))
	}
	pkB64, ok := args[0].AsString()
	if !ok {
		return value.Null(), typeErr("verify_ed25519 requires a base64 public key string")
	}
	sigB64, ok := args[2].AsString()
	if !ok {
		return value.Null(), typeErr("verify_ed25519 requires a base64 signature string")
	}
	msgBytes, err := messageBytes(args[1])
	if err != nil {
		return value.Null(), err
	}
	pk, err := decodeB64(pkB64)
	if err != nil || len(pk) != ed25519.PublicKeySize {
		return value.Bool(false), nil
	}
	sig, err := decodeB64(sigB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return value.Bool(false), nil
	}
	return value.Bool(ed25519.Verify(ed25519.PublicKey(pk), msgBytes, sig)), nil
}

func messageBytes(v value.Value) ([]byte, error) {
	if b, ok := v.AsBytes(); ok {
		return b, nil
	}
	if s, ok := v.AsString(); ok {
		return []byte(s), nil
	}
	return nil, typeErr("verify_ed25519 message must be a string or byte string")
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func bSha256(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), argErr("sha256", 1, len(args))
	}
	return value.Str(canon.Hash(args[0])), nil
}

func argErr(name string, want, got int) error {
	return kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", "%s expects %d argument(s), got %d", name, want, got)
}

func typeErr(msg string) error {
	return kernelerr.WithReason(kernelerr.EvalError, "type_mismatch", msg)
}
