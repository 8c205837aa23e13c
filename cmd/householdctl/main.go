// Command householdctl runs operator tasks against the household ledger
// database: schema migrations and family approval.
package main

import "household-ledger/cmd/householdctl/cmd"

func main() {
	cmd.Execute()
}
