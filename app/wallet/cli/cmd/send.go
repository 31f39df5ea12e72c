package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

var (
	url     string
	nonce   uint64
	energy  uint64
	expiry  uint64
	keyIdx  uint8
	payload []byte
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		sendWithDetails(privateKey)
	},
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) {
	if expiry == 0 {
		expiry = uint64(time.Now().Add(2 * time.Hour).Unix())
	}

	header := transaction.Header{
		SenderID:    transaction.PublicKeyToAccountID(privateKey.PublicKey),
		Nonce:       nonce,
		Energy:      energy,
		PayloadSize: uint32(len(payload)),
		Expiry:      expiry,
	}

	sig, err := transaction.Sign(header, payload, keyIdx, privateKey)
	if err != nil {
		log.Fatal(err)
	}

	submit := struct {
		Header  transaction.Header     `json:"header"`
		Payload hexutil.Bytes          `json:"payload"`
		Sigs    transaction.Signatures `json:"sigs"`
	}{
		Header:  header,
		Payload: payload,
		Sigs:    transaction.Signatures{sig},
	}

	data, err := json.Marshal(submit)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatal(err)
	}

	if result.Error != "" {
		log.Fatal(result.Error)
	}
	fmt.Println(result.Status, result.Hash)
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce for the transaction.")
	sendCmd.Flags().Uint64VarP(&energy, "energy", "e", 0, "Energy the transaction may consume.")
	sendCmd.Flags().Uint64VarP(&expiry, "expiry", "x", 0, "Unix second the transaction expires, defaults to two hours out.")
	sendCmd.Flags().Uint8VarP(&keyIdx, "keyidx", "k", 0, "Index of the account key used to sign.")
	sendCmd.Flags().BytesHexVarP(&payload, "payload", "d", nil, "Payload to send.")
}
