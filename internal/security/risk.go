// Package security implements the cross-cutting transaction risk analyzer
// and origin guard from spec §4.2. The risk analyzer is pure modulo its
// configured blocklists, mirroring the priority-ordered rule evaluation
// style of internal/lib/errors.go's MapWalletError.
package security

import (
	"math/big"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
)

// ActionKind discriminates a transaction action for risk analysis; these
// mirror txcodec's action discriminants but are kept separate so the
// analyzer has no dependency on the wire-format package.
type ActionKind string

const (
	ActionCreateAccount  ActionKind = "CreateAccount"
	ActionDeployContract ActionKind = "DeployContract"
	ActionFunctionCall   ActionKind = "FunctionCall"
	ActionTransfer       ActionKind = "Transfer"
	ActionStake          ActionKind = "Stake"
	ActionAddKey         ActionKind = "AddKey"
	ActionDeleteKey      ActionKind = "DeleteKey"
	ActionDeleteAccount  ActionKind = "DeleteAccount"
)

// AccessKeyPermission tags an AddKey action's requested permission.
type AccessKeyPermission string

const (
	PermissionFullAccess AccessKeyPermission = "FullAccess"
	PermissionFunctionCall AccessKeyPermission = "FunctionCall"
)

// Action is the risk-relevant projection of one transaction action.
type Action struct {
	Kind ActionKind

	// Transfer / Stake
	Deposit *big.Int

	// FunctionCall
	MethodName string
	Gas        uint64
	Args       []byte

	// AddKey
	Permission AccessKeyPermission
}

// Transaction is the risk-relevant projection of a transaction.
type Transaction struct {
	ReceiverID string
	Actions    []Action
}

// Config supplies the analyzer's blocklists/allowlists and thresholds.
type Config struct {
	ScamReceivers       map[string]bool
	BlockedReceivers    map[string]bool
	AllowedReceivers    map[string]bool // nil/empty means unrestricted
	MaxTransferAmount   *big.Int        // nil means no explicit cap beyond the fixed tiers
	BlockedMethods      map[string]bool
	AllowedMethods      map[string]bool // nil/empty means unrestricted
	MaxGasPerAction     uint64
	SuspiciousArgPatterns [][]byte
	ForceExplicitApproval bool
}

// yoctoNEAR tiers from spec's fixed table (100 * 10^24, 1000 * 10^24).
var (
	tier100  = mulPow10(big.NewInt(100), 24)
	tier1000 = mulPow10(big.NewInt(1000), 24)
)

func mulPow10(n *big.Int, exp int) *big.Int {
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
	return new(big.Int).Mul(n, factor)
}

var dangerousMethods = map[string]bool{
	"add_full_access_key": true,
	"delete_account":      true,
	"deploy":               true,
	"add_key":              true,
	"delete_key":           true,
}

// Assessment is the result of analyzing one transaction.
type Assessment struct {
	Level                   model.RiskLevel
	Reasons                 []string
	RequiresExplicitApproval bool
}

// Analyzer evaluates transactions against Config's ordered rule table.
// It never mutates its input.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer constructs an Analyzer bound to cfg.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// escalate raises level to at least min and appends reason.
func escalate(level *model.RiskLevel, reasons *[]string, min model.RiskLevel, reason string) {
	if min > *level {
		*level = min
	}
	*reasons = append(*reasons, reason)
}

// AnalyzeRisk applies the ordered rule table from spec §4.2. The level for
// the whole transaction is the max across receiver-level checks and every
// action's escalation; escalation is monotonic (never lowered).
func (a *Analyzer) AnalyzeRisk(tx Transaction) Assessment {
	level := model.RiskLow
	var reasons []string

	if a.cfg.ScamReceivers[tx.ReceiverID] {
		escalate(&level, &reasons, model.RiskCritical, "Receiver is a known scam address")
	}
	if a.cfg.BlockedReceivers[tx.ReceiverID] {
		escalate(&level, &reasons, model.RiskCritical, "Receiver is explicitly blocked")
	}
	if len(a.cfg.AllowedReceivers) > 0 && !a.cfg.AllowedReceivers[tx.ReceiverID] {
		escalate(&level, &reasons, model.RiskMedium, "Receiver is not in the allowed list")
	}

	for _, act := range tx.Actions {
		a.analyzeAction(act, &level, &reasons)
	}

	requiresApproval := level == model.RiskHigh || level == model.RiskCritical || a.cfg.ForceExplicitApproval
	return Assessment{Level: level, Reasons: reasons, RequiresExplicitApproval: requiresApproval}
}

func (a *Analyzer) analyzeAction(act Action, level *model.RiskLevel, reasons *[]string) {
	switch act.Kind {
	case ActionTransfer:
		a.analyzeTransfer(act, level, reasons)
	case ActionFunctionCall:
		a.analyzeFunctionCall(act, level, reasons)
	case ActionAddKey:
		if act.Permission == PermissionFullAccess {
			escalate(level, reasons, model.RiskCritical, "Adding full access key - grants complete account control")
		} else {
			escalate(level, reasons, model.RiskMedium, "Adding a restricted access key")
		}
	case ActionDeleteKey:
		escalate(level, reasons, model.RiskHigh, "Removing an access key")
	case ActionDeleteAccount:
		escalate(level, reasons, model.RiskCritical, "Deleting the account")
	case ActionDeployContract:
		escalate(level, reasons, model.RiskCritical, "Deploying new contract code")
	case ActionStake:
		escalate(level, reasons, model.RiskMedium, "Staking tokens")
	}
}

func (a *Analyzer) analyzeTransfer(act Action, level *model.RiskLevel, reasons *[]string) {
	if act.Deposit == nil {
		return
	}
	if a.cfg.MaxTransferAmount != nil && act.Deposit.Cmp(a.cfg.MaxTransferAmount) > 0 {
		escalate(level, reasons, model.RiskHigh, "Transfer exceeds the configured maximum amount")
	}
	if act.Deposit.Cmp(tier1000) >= 0 {
		escalate(level, reasons, model.RiskHigh, "Transfer amount exceeds 1000 NEAR")
	} else if act.Deposit.Cmp(tier100) >= 0 {
		escalate(level, reasons, model.RiskMedium, "Transfer amount exceeds 100 NEAR")
	}
}

func (a *Analyzer) analyzeFunctionCall(act Action, level *model.RiskLevel, reasons *[]string) {
	if dangerousMethods[act.MethodName] {
		escalate(level, reasons, model.RiskCritical, "Calling a dangerous method: "+act.MethodName)
	}
	if a.cfg.BlockedMethods[act.MethodName] {
		escalate(level, reasons, model.RiskCritical, "Method is explicitly blocked: "+act.MethodName)
	}
	if len(a.cfg.AllowedMethods) > 0 && !a.cfg.AllowedMethods[act.MethodName] {
		escalate(level, reasons, model.RiskMedium, "Method is not in the allowed list: "+act.MethodName)
	}
	if a.cfg.MaxGasPerAction > 0 && act.Gas > a.cfg.MaxGasPerAction {
		escalate(level, reasons, model.RiskMedium, "Gas exceeds the configured maximum for a single action")
	}
	for _, pattern := range a.cfg.SuspiciousArgPatterns {
		if containsBytes(act.Args, pattern) {
			escalate(level, reasons, model.RiskHigh, "Function call arguments match a suspicious pattern")
			break
		}
	}
}

func containsBytes(haystack, needle []byte) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Validate returns {valid, reasons, risk}; valid is false iff the final
// level is critical.
func (a *Analyzer) Validate(tx Transaction) (valid bool, assessment Assessment) {
	assessment = a.AnalyzeRisk(tx)
	return assessment.Level != model.RiskCritical, assessment
}
