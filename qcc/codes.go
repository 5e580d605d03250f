package qcc

// Command is a one-byte QCC opcode.
type Command byte

// Response is a one-byte QCC response code.
type Response byte

// Command opcodes. The 0xF0 range is the vendor extension block; those
// commands carry a fixed magic marker in the payload where noted.
const (
	CmdGetStatus      Command = 0x01
	CmdStart          Command = 0x04
	CmdStop           Command = 0x05
	CmdGetConfig      Command = 0x07
	CmdSetConfig      Command = 0x08
	CmdGetStatistics  Command = 0x09
	CmdReset          Command = 0x0A
	CmdGetInfo        Command = 0x0B
	CmdSignedRead     Command = 0x51
	CmdGetDevPubKey   Command = 0xF7
	CmdReboot         Command = 0xF8
	CmdGetCertificate Command = 0xF9
)

// Response codes.
const (
	RespAck          Response = 0x11
	RespNack         Response = 0x12
	RespConfig       Response = 0x17
	RespStatistics   Response = 0x19
	RespInfo         Response = 0x1B
	RespSignedReadOK Response = 0x52
	RespDevPubKey    Response = 0xF9
	RespReboot       Response = 0xF8
	RespCertificate  Response = 0xFB
)

// Wire sizes. Response payload lengths are static per response code and are
// never derived from received data.
const (
	StatusLen      = 5  // ACK payload: u8 flags || u32 ready_bytes
	ConfigLen      = 12 // CONFIG payload and SET_CONFIG argument
	StatisticsLen  = 30
	InfoLen        = 56
	KeyLen         = 64 // raw public key, x||y
	SignatureLen   = 64 // raw signature, r||s
	CertificateLen = 64 // CA signature over the certificate blob

	infoStringLen = 24

	// MaxBlockSize is the largest generation block the device can be
	// configured with. The STOP drain sizes its scan buffer from it.
	MaxBlockSize = 4096

	// MaxReadLen is the largest byte count a single START or SIGNED_READ
	// can request; the wire length field is 16 bits.
	MaxReadLen = 65535
)

// rebootMagic guards the REBOOT opcode against stray bytes being taken for a
// reboot request.
var rebootMagic = [2]byte{0xA5, 0x5A}

var successResponse = map[Command]Response{
	CmdGetStatus:      RespAck,
	CmdStart:          RespAck,
	CmdStop:           RespAck,
	CmdGetConfig:      RespConfig,
	CmdSetConfig:      RespAck,
	CmdGetStatistics:  RespStatistics,
	CmdReset:          RespAck,
	CmdGetInfo:        RespInfo,
	CmdSignedRead:     RespSignedReadOK,
	CmdGetDevPubKey:   RespDevPubKey,
	CmdReboot:         RespReboot,
	CmdGetCertificate: RespCertificate,
}

var payloadSize = map[Response]int{
	RespAck:          StatusLen,
	RespNack:         0,
	RespConfig:       ConfigLen,
	RespStatistics:   StatisticsLen,
	RespInfo:         InfoLen,
	RespSignedReadOK: 0,
	RespDevPubKey:    KeyLen,
	RespReboot:       0,
	RespCertificate:  CertificateLen,
}

// SuccessResponse returns the response code the device answers cmd with on
// success. ok is false for opcodes that are not part of the protocol.
func SuccessResponse(cmd Command) (resp Response, ok bool) {
	resp, ok = successResponse[cmd]
	return resp, ok
}

// PayloadSize returns the fixed payload length that follows resp on the wire.
// ok is false for unknown response codes.
func PayloadSize(resp Response) (n int, ok bool) {
	n, ok = payloadSize[resp]
	return n, ok
}
