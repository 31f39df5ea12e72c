package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/updates"
)

var (
	seq       uint64
	effective uint64
	timeout   uint64
	parts     uint32
)

// updateCmd signs and submits an election difficulty update instruction
// using the wallet key as a governance key.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sign and submit an election difficulty update instruction",
	Run:   updateRun,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	updateCmd.Flags().Uint64VarP(&seq, "seq", "s", 1, "Sequence number the update queue expects.")
	updateCmd.Flags().Uint64VarP(&effective, "effective", "e", 0, "Unix second the update takes effect, defaults to one hour out.")
	updateCmd.Flags().Uint64VarP(&timeout, "timeout", "t", 0, "Unix second the instruction times out, defaults to 30 minutes out.")
	updateCmd.Flags().Uint32VarP(&parts, "parts", "d", 0, "Election difficulty in parts per hundred thousand.")
	updateCmd.Flags().Uint8VarP(&keyIdx, "keyidx", "k", 0, "Index of the governance key used to sign.")
}

func updateRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	if effective == 0 {
		effective = uint64(time.Now().Add(time.Hour).Unix())
	}
	if timeout == 0 {
		timeout = uint64(time.Now().Add(30 * time.Minute).Unix())
	}

	payload := updates.ElectionDifficulty{PartsPerHundredThousand: parts}

	encoded, err := updates.EncodePayload(payload)
	if err != nil {
		log.Fatal(err)
	}

	header := updates.InstructionHeader{
		SequenceNumber: seq,
		EffectiveTime:  effective,
		Timeout:        timeout,
		PayloadSize:    uint32(len(encoded)),
	}

	sig, err := updates.SignInstruction(header, payload, keyIdx, privateKey)
	if err != nil {
		log.Fatal(err)
	}

	ins, err := updates.NewInstruction(header, payload, transaction.Signatures{sig})
	if err != nil {
		log.Fatal(err)
	}

	wire, err := ins.Encode()
	if err != nil {
		log.Fatal(err)
	}

	submit := struct {
		Instruction hexutil.Bytes `json:"instruction"`
	}{
		Instruction: wire,
	}

	data, err := json.Marshal(submit)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/gov/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Kind   string `json:"kind"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatal(err)
	}

	if result.Error != "" {
		log.Fatal(result.Error)
	}
	fmt.Println(result.Status, result.Kind)
}
