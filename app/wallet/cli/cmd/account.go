package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account id for the specific wallet",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	accountID := transaction.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println(accountID)
}
