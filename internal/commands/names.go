package commands

// Command names as exposed to the presentation layer.
const (
	CmdCreateAccount      = "createAccount"
	CmdListAccounts       = "listAccounts"
	CmdAddOperation       = "addOperation"
	CmdGetOperations      = "getOperations"
	CmdListVersions       = "listVersions"
	CmdVerifyVersion      = "verifyVersion"
	CmdGetAccountBalance  = "getAccountBalance"
	CmdGetNetWorth        = "getNetWorth"
	CmdGetBalanceHistory  = "getBalanceHistory"
	CmdGetAssetAllocation = "getAssetAllocation"
	CmdGenerateKey        = "generateKey"
	CmdDerivePasswordKey  = "derivePasswordKey"
	CmdVerifyPasswordKey  = "verifyPasswordKey"
	CmdGetCryptoConfig    = "getCryptoConfig"
	CmdInitDatabase       = "initDatabase"
	CmdCheckConnection    = "checkConnection"
	CmdGetVersion         = "getVersion"
	CmdSetVersion         = "setVersion"
	CmdGetStatus          = "getStatus"
	CmdExecuteQuery       = "executeQuery"
	CmdCloseDatabase      = "closeDatabase"
)

// Names lists every command.
var Names = []string{
	CmdCreateAccount, CmdListAccounts, CmdAddOperation, CmdGetOperations,
	CmdListVersions, CmdVerifyVersion, CmdGetAccountBalance, CmdGetNetWorth,
	CmdGetBalanceHistory, CmdGetAssetAllocation, CmdGenerateKey,
	CmdDerivePasswordKey, CmdVerifyPasswordKey, CmdGetCryptoConfig,
	CmdInitDatabase, CmdCheckConnection, CmdGetVersion, CmdSetVersion,
	CmdGetStatus, CmdExecuteQuery, CmdCloseDatabase,
}
