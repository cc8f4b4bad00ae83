package distribution

import (
	"encoding/hex"
	"fmt"

	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MerkleizeAllocations builds a keccak256 merkle tree over the allocations, one leaf
// per wallet in ascending address order. Allocations must already be sorted.
func MerkleizeAllocations(periodKey string, allocations []*Allocation) (*merkletree.MerkleTree, error) {
	om := orderedmap.New[string, []byte]()

	for _, a := range allocations {
		if _, found := om.Get(a.WalletAddress); found {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateHolding, a.WalletAddress)
		}
		om.Set(a.WalletAddress, []byte(a.Amount.String()))

		prev := om.GetPair(a.WalletAddress).Prev()
		if prev != nil && prev.Key > a.WalletAddress {
			return nil, fmt.Errorf("allocations are not in wallet order")
		}
	}

	leaves := [][]byte{[]byte(periodKey)}
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		leaves = append(leaves, encodeMerkleLeaf(pair.Key, pair.Value))
	}
	return merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
}

func encodeMerkleLeaf(wallet string, amount []byte) []byte {
	return append(append([]byte(wallet), ':'), amount...)
}

// DistributionRoot returns the hex encoded root of the allocations' merkle tree.
func DistributionRoot(periodKey string, allocations []*Allocation) (string, error) {
	tree, err := MerkleizeAllocations(periodKey, allocations)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(tree.Root()), nil
}
