package protocol

// Command and response IDs shared by firmware and host.
// IDs are fixed so the host needs no dictionary download.
const (
	CmdIdentify     uint16 = 1
	CmdConfigServo  uint16 = 2
	CmdServoAttach  uint16 = 3
	CmdServoDetach  uint16 = 4
	CmdServoWrite   uint16 = 5
	CmdServoWriteUS uint16 = 6
	CmdServoQuery   uint16 = 7

	RespIdentify   uint16 = 64
	RespServoState uint16 = 65
)

// CommandFormats lists each message's argument format in dictionary form
var CommandFormats = map[uint16]string{
	CmdIdentify:     "identify",
	CmdConfigServo:  "config_servo oid=%c",
	CmdServoAttach:  "servo_attach oid=%c pin=%u min_us=%u max_us=%u",
	CmdServoDetach:  "servo_detach oid=%c",
	CmdServoWrite:   "servo_write oid=%c value=%i",
	CmdServoWriteUS: "servo_write_us oid=%c value=%u",
	CmdServoQuery:   "servo_query oid=%c",

	RespIdentify:   "identify_response version=%s servos=%c",
	RespServoState: "servo_state oid=%c attached=%c angle=%c us=%u",
}

// ServoState is the decoded servo_state response
type ServoState struct {
	OID      uint8
	Attached bool
	Angle    int
	US       int
}

// EncodeServoState writes a servo_state response body (without the ID)
func EncodeServoState(output OutputBuffer, st ServoState) {
	attached := uint32(0)
	if st.Attached {
		attached = 1
	}
	EncodeVLQUint(output, uint32(st.OID))
	EncodeVLQUint(output, attached)
	EncodeVLQInt(output, int32(st.Angle))
	EncodeVLQUint(output, uint32(st.US))
}

// DecodeServoState reads a servo_state response body
func DecodeServoState(data *[]byte) (ServoState, error) {
	var st ServoState
	oid, err := DecodeVLQUint(data)
	if err != nil {
		return st, err
	}
	attached, err := DecodeVLQUint(data)
	if err != nil {
		return st, err
	}
	angle, err := DecodeVLQInt(data)
	if err != nil {
		return st, err
	}
	us, err := DecodeVLQUint(data)
	if err != nil {
		return st, err
	}
	st.OID = uint8(oid)
	st.Attached = attached != 0
	st.Angle = int(angle)
	st.US = int(us)
	return st, nil
}
