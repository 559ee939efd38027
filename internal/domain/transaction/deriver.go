package transaction

import (
	"math"
	"unicode/utf8"
)

// Derive fills missing balance and name fields, computes the balance
// difference features, truncates account names and drops obsolete fields.
// It never fails: values it cannot use become NaN (numbers) or "" (names) and
// are rejected later when features are prepared for the model.
func Derive(records []*Record) []*Record {
	out := make([]*Record, len(records))
	for i, r := range records {
		if r == nil {
			r = NewRecord()
		}
		d := r.Clone()
		deriveRecord(d)
		out[i] = d
	}
	return out
}

func deriveRecord(r *Record) {
	for _, f := range balanceFields {
		if v, ok := r.Get(f); !ok || v == nil {
			r.Set(f, 0.0)
		}
	}
	// Missing names go straight to "", which is what truncating a numeric
	// default would produce anyway.
	for _, f := range nameFields {
		if v, ok := r.Get(f); !ok || v == nil {
			r.Set(f, "")
		}
	}

	r.Set(FieldDiffNewOldBalance, difference(r, FieldNewBalanceOrig, FieldOldBalanceOrg))
	r.Set(FieldDiffNewOldDestiny, difference(r, FieldNewBalanceDest, FieldOldBalanceDest))

	for _, f := range nameFields {
		v, _ := r.Get(f)
		r.Set(f, FirstCharacter(v))
	}

	for _, f := range obsoleteFields {
		r.Delete(f)
	}
}

// difference returns r[a] - r[b], or NaN when either operand is not a number.
func difference(r *Record, a, b string) float64 {
	av, _ := r.Get(a)
	bv, _ := r.Get(b)

	x, ok := AsFloat(av)
	if !ok {
		return math.NaN()
	}
	y, ok := AsFloat(bv)
	if !ok {
		return math.NaN()
	}
	return x - y
}

// FirstCharacter returns the first character of a string value and "" for
// empty strings and non-string values.
func FirstCharacter(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}
