package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SignatureLoggerABI is the interface of the on-chain signature logger.
const SignatureLoggerABI = `[
	{
		"type": "function",
		"name": "logPayload",
		"stateMutability": "nonpayable",
		"inputs": [
			{
				"name": "payloadPair",
				"type": "tuple",
				"components": [
					{"name": "payloadKey", "type": "string"},
					{"name": "signature", "type": "string"}
				]
			}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "logPresentation",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "historyKey", "type": "string"},
			{"name": "jsonString", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getPresentationHistory",
		"stateMutability": "view",
		"inputs": [
			{"name": "historyKey", "type": "string"}
		],
		"outputs": [
			{
				"name": "",
				"type": "tuple[]",
				"components": [
					{"name": "jsonString", "type": "string"},
					{"name": "timestamp", "type": "uint256"}
				]
			}
		]
	}
]`

// PayloadSignaturePair is the argument of logPayload.
type PayloadSignaturePair struct {
	PayloadKey string
	Signature  string
}

// PresentationRecord is an element returned by getPresentationHistory.
type PresentationRecord struct {
	JsonString string
	Timestamp  *big.Int
}

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(SignatureLoggerABI))
	if err != nil {
		panic("invalid signature logger abi: " + err.Error())
	}
	return parsed
}
