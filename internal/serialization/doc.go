// Package serialization implements the .born container used for model weights and
// training checkpoints.
//
// Layout (all integers little-endian):
//
//	0x00  [4 bytes: Magic "BORN"]
//	0x04  [4 bytes: Version (uint32), always 2]
//	0x08  [4 bytes: Flags (uint32)]
//	0x0C  [4 bytes: reserved]
//	0x10  [8 bytes: Header Size (uint64)]
//	0x18  [8 bytes: Data Size (uint64)]
//	0x20  [32 bytes: SHA-256 of the data section]
//	0x40  [Header: JSON metadata]
//	      [padding to a 64-byte boundary]
//	      [Tensor data: raw float32 bytes]
//
// The JSON header lists every tensor with its offset inside the data section and
// optionally carries checkpoint metadata such as the optimizer parameter groups.
//
// Example usage:
//
//	err := serialization.WriteFile("run.born", tensors, serialization.Header{Kind: serialization.KindModel})
//
//	f, err := serialization.ReadFile("run.born", serialization.ReaderOptions{})
//	w := f.Tensors["model.linear.weight"]
package serialization
