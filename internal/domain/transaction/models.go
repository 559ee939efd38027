package transaction

// Canonical field names used after normalization.
const (
	FieldStep           = "step"
	FieldType           = "type"
	FieldAmount         = "amount"
	FieldNameOrig       = "name_orig"
	FieldNameDest       = "name_dest"
	FieldOldBalanceOrg  = "old_balance_org"
	FieldNewBalanceOrig = "new_balance_orig"
	FieldOldBalanceDest = "old_balance_dest"
	FieldNewBalanceDest = "new_balance_dest"

	// Derived features
	FieldDiffNewOldBalance = "diff_new_old_balance"
	FieldDiffNewOldDestiny = "diff_new_old_destiny"
)

// FieldAliases maps legacy field names onto canonical ones.
var FieldAliases = map[string]string{
	"newbalanceOrig": FieldNewBalanceOrig,
	"oldbalanceOrg":  FieldOldBalanceOrg,
	"nameOrig":       FieldNameOrig,
	"nameDest":       FieldNameDest,
	"newbalanceDest": FieldNewBalanceDest,
	"oldbalanceDest": FieldOldBalanceDest,
}

// balanceFields default to zero when absent.
var balanceFields = []string{
	FieldNewBalanceOrig,
	FieldOldBalanceOrg,
	FieldNewBalanceDest,
	FieldOldBalanceDest,
}

// nameFields are truncated to their first character.
var nameFields = []string{
	FieldNameOrig,
	FieldNameDest,
}

// obsoleteFields are time buckets that are no longer model inputs.
var obsoleteFields = []string{
	"step_weeks",
	"step_days",
}
