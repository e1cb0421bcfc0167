//go:build linux && !ppc && !ppc64 && !ppc64le

package tun

// tunSetIff is the TUNSETIFF ioctl request code on architectures where
// _IOC_WRITE is encoded as 1.
const tunSetIff = 0x400454ca
