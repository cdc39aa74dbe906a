// Package lft implements the linear forwarding table double-buffer
// compare: diffing a switch's installed LFT against the routing
// engine's freshly computed NewLFT in fixed-size blocks, so only the
// blocks that actually changed get written to hardware.
package lft

import "github.com/osmcore/osmcore/internal/subnet"

// BlockSize is the number of contiguous LID entries one LFT block SMP
// write covers.
const BlockSize = 64

// Block is one differing LFT block ready to be sent to a switch.
type Block struct {
	SwitchGUID subnet.GUID
	BlockNum   int
	Ports      [BlockSize]int
}

// Diff compares sw.LFT against sw.NewLFT block by block and returns
// every block that differs. When sw.IgnoreExistingLFTs is set, every
// non-empty block is returned regardless of whether it changed — a
// "force a full rewrite" escape hatch for suspected out-of-band LFT
// corruption.
func Diff(sw *subnet.Switch) []Block {
	n := len(sw.NewLFT)
	var blocks []Block

	for start := 0; start < n; start += BlockSize {
		end := start + BlockSize
		if end > n {
			end = n
		}

		changed := sw.IgnoreExistingLFTs
		if !changed {
			for l := start; l < end; l++ {
				if sw.LFT[l] != sw.NewLFT[l] {
					changed = true
					break
				}
			}
		}
		if !changed {
			continue
		}

		blk := Block{SwitchGUID: sw.Node.GUID, BlockNum: start / BlockSize}
		for i := range blk.Ports {
			blk.Ports[i] = subnet.NoPath
		}
		for l := start; l < end; l++ {
			blk.Ports[l-start] = sw.NewLFT[l]
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// Install copies NewLFT into LFT once every returned block has been
// confirmed written, so the next sweep's Diff compares against what is
// actually programmed into the switch.
func Install(sw *subnet.Switch) {
	copy(sw.LFT, sw.NewLFT)
}

// NumBlocks returns how many blocks a maxLID-sized LFT spans.
func NumBlocks(maxLID subnet.LID) int {
	n := int(maxLID) + 1
	return (n + BlockSize - 1) / BlockSize
}
