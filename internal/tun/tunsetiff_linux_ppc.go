//go:build linux && (ppc || ppc64 || ppc64le)

package tun

// tunSetIff is the TUNSETIFF ioctl request code on PowerPC, where the ioctl
// direction bits encode _IOC_WRITE as 4 instead of 1, shifting the request
// number from the 0x4000... form used elsewhere.
const tunSetIff = 0x800454ca
