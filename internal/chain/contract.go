package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// StoryNFTABI is the subset of the story NFT contract the minter calls.
const StoryNFTABI = `[
  {"type":"function","name":"mintPrice","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mintStory","stateMutability":"payable",
   "inputs":[{"name":"storyHash","type":"string"},{"name":"metadataURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"StoryMinted","anonymous":false,
   "inputs":[{"name":"tokenId","type":"uint256","indexed":true},
             {"name":"creator","type":"address","indexed":true},
             {"name":"storyHash","type":"string","indexed":false},
             {"name":"metadataURI","type":"string","indexed":false}]}
]`

const (
	methodMintPrice  = "mintPrice"
	methodMintStory  = "mintStory"
	eventStoryMinted = "StoryMinted"
)

var storyNFTABI = mustParseABI(StoryNFTABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid contract ABI: " + err.Error())
	}
	return parsed
}

// ContractABI returns the parsed story NFT ABI.
func ContractABI() abi.ABI {
	return storyNFTABI
}
