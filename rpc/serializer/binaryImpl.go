package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/lweidner/akv/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey       uint16 = 1 << 0
	hasValue     uint16 = 1 << 1
	hasFlags     uint16 = 1 << 2
	hasCas       uint16 = 1 << 3
	hasExpiry    uint16 = 1 << 4
	hasTimeoutMs uint16 = 1 << 5
	hasOk        uint16 = 1 << 6
	hasErrCode   uint16 = 1 << 7
	hasErr       uint16 = 1 << 8
	hasMeta      uint16 = 1 << 9
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize presence mask
	var present uint16 = 0

	// Set position for writing
	pos := 3 // Start after MsgType and presence mask

	// Handle Key
	if msg.Key != "" {
		present |= hasKey
		keyBytes := []byte(msg.Key)
		keyLen := len(keyBytes)

		// Write key length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(keyLen))
		pos += 4

		// Write key data
		copy(result[pos:pos+keyLen], keyBytes)
		pos += keyLen
	}

	// Handle Value
	if msg.Value != nil {
		present |= hasValue
		valueLen := len(msg.Value)

		// Write value length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(valueLen))
		pos += 4

		// Write value data
		if valueLen > 0 {
			copy(result[pos:pos+valueLen], msg.Value)
			pos += valueLen
		}
	}

	// Handle Flags
	if msg.Flags > 0 {
		present |= hasFlags
		binary.BigEndian.PutUint32(result[pos:pos+4], msg.Flags)
		pos += 4
	}

	// Handle Cas
	if msg.Cas > 0 {
		present |= hasCas
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Cas)
		pos += 8
	}

	// Handle Expiry
	if msg.Expiry > 0 {
		present |= hasExpiry
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Expiry)
		pos += 8
	}

	// Handle TimeoutMs
	if msg.TimeoutMs > 0 {
		present |= hasTimeoutMs
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.TimeoutMs)
		pos += 8
	}

	// Handle Ok
	if msg.Ok {
		present |= hasOk
		result[pos] = 1
		pos += 1
	}

	// Handle ErrCode
	if msg.ErrCode > 0 {
		present |= hasErrCode
		result[pos] = msg.ErrCode
		pos += 1
	}

	// Handle Err
	if msg.Err != "" {
		present |= hasErr
		errBytes := []byte(msg.Err)
		errLen := len(errBytes)

		// Write error length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(errLen))
		pos += 4

		// Write error data
		copy(result[pos:pos+errLen], errBytes)
		pos += errLen
	}

	// Handle Meta
	if msg.Meta != nil {
		present |= hasMeta
		metaLen := len(msg.Meta)

		// Write meta length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(metaLen))
		pos += 4

		// Write meta data
		if metaLen > 0 {
			copy(result[pos:pos+metaLen], msg.Meta)
			pos += metaLen
		}
	}

	// Set presence mask after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], present)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + presence mask)
	if len(data) < 3 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read presence mask
	present := binary.BigEndian.Uint16(data[1:3])

	// Initialize read position
	pos := 3

	// Read Key if present
	if present&hasKey != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for key length")
		}

		// Read key length
		keyLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(keyLen) > len(data) {
			return fmt.Errorf("data too short for key data")
		}

		// Read key data
		msg.Key = string(data[pos : pos+int(keyLen)])
		pos += int(keyLen)
	} else {
		msg.Key = ""
	}

	// Read Value if present
	if present&hasValue != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for value length")
		}

		// Read value length
		valueLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(valueLen) > len(data) {
			return fmt.Errorf("data too short for value data")
		}

		// Read value data - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Value == nil || cap(msg.Value) < int(valueLen) {
			msg.Value = make([]byte, valueLen)
		} else {
			msg.Value = msg.Value[:valueLen]
		}

		if valueLen > 0 {
			copy(msg.Value, data[pos:pos+int(valueLen)])
		}
		pos += int(valueLen)
	} else {
		msg.Value = nil
	}

	// Read Flags if present
	if present&hasFlags != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for flags")
		}

		msg.Flags = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	} else {
		msg.Flags = 0
	}

	// Read Cas if present
	if present&hasCas != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for cas")
		}

		msg.Cas = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Cas = 0
	}

	// Read Expiry if present
	if present&hasExpiry != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for expiry")
		}

		msg.Expiry = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Expiry = 0
	}

	// Read TimeoutMs if present
	if present&hasTimeoutMs != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for timeout")
		}

		msg.TimeoutMs = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.TimeoutMs = 0
	}

	// Read Ok if present
	if present&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}

		msg.Ok = data[pos] != 0
		pos += 1
	} else {
		msg.Ok = false
	}

	// Read ErrCode if present
	if present&hasErrCode != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for error code")
		}

		msg.ErrCode = data[pos]
		pos += 1
	} else {
		msg.ErrCode = 0
	}

	// Read Err if present
	if present&hasErr != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for error length")
		}

		// Read error length
		errLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(errLen) > len(data) {
			return fmt.Errorf("data too short for error data")
		}

		// Read error data
		msg.Err = string(data[pos : pos+int(errLen)])
		pos += int(errLen)
	} else {
		msg.Err = ""
	}

	// Read Meta if present
	if present&hasMeta != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for meta length")
		}

		// Read meta length
		metaLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(metaLen) > len(data) {
			return fmt.Errorf("data too short for meta data")
		}

		// Read metadata - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Meta == nil || cap(msg.Meta) < int(metaLen) {
			msg.Meta = make([]byte, metaLen)
		} else {
			msg.Meta = msg.Meta[:metaLen]
		}

		if metaLen > 0 {
			copy(msg.Meta, data[pos:pos+int(metaLen)])
		}
		pos += int(metaLen)
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 2 bytes for presence mask
	size := 3

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key) // 4 bytes for length + key string
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.Flags > 0 {
		size += 4 // uint32
	}
	if msg.Cas > 0 {
		size += 8 // uint64
	}
	if msg.Expiry > 0 {
		size += 8 // uint64
	}
	if msg.TimeoutMs > 0 {
		size += 8 // uint64
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}
	if msg.ErrCode > 0 {
		size += 1 // 1 byte for status code
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}
