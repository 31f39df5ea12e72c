package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the account details for this wallet.",
	Run:   queryRun,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func queryRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	accountID := transaction.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println("For Account:", accountID)

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/list/%s", url, accountID))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var details struct {
		LatestBlock string `json:"latest_block"`
		Tracked     int    `json:"tracked"`
		Accounts    []struct {
			Account   string `json:"account"`
			Name      string `json:"name"`
			Nonce     uint64 `json:"nonce"`
			NextNonce uint64 `json:"nextNonce"`
			HighNonce uint64 `json:"highNonce"`
		} `json:"accounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		log.Fatal(err)
	}

	for _, act := range details.Accounts {
		fmt.Printf("name[%s] finalized nonce[%d] pending[%d..%d]\n", act.Name, act.Nonce, act.NextNonce, act.HighNonce)
	}
}
