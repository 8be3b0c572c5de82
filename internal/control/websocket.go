package control

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/color"
)

// Websocket opcodes and result bytes.
const (
	opUnknown       byte = 0x00
	opGetConnection byte = 0x01
	opSetConnection byte = 0x02
	opSetColor      byte = 0x03
	opSetSunMode    byte = 0x04
	opGetStatus     byte = 0x05

	resultSuccess byte = 0x00
	resultError   byte = 0xFF

	modeSunImitation byte = 0
	modeColor        byte = 1

	maxDateTimeLen = 28
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 256,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleFrame answers one binary frame. Malformed and unsupported requests
// (including the connection parameter opcodes, which belong to the lamp's
// own WiFi setup) get [0x00, 0xFF].
func (s *Server) HandleFrame(data []byte) []byte {
	failed := []byte{opUnknown, resultError}
	if len(data) == 0 {
		return failed
	}

	switch data[0] {
	case opSetColor:
		if len(data) < 4 {
			return failed
		}
		if !s.limiter.Allow() {
			return []byte{opSetColor, resultError}
		}
		if _, err := s.ctrl.SetColor("ws", color.RGB(data[1], data[2], data[3])); err != nil {
			return []byte{opSetColor, resultError}
		}
		return []byte{opSetColor, resultSuccess}

	case opSetSunMode:
		if len(data) < 2 {
			return failed
		}
		if !s.limiter.Allow() {
			return []byte{opSetSunMode, resultError}
		}
		if _, err := s.ctrl.SetSun("ws", data[1] == 0x01); err != nil {
			return []byte{opSetSunMode, resultError}
		}
		return []byte{opSetSunMode, resultSuccess}

	case opGetStatus:
		return s.statusFrame()

	case opGetConnection, opSetConnection:
		log.Debug().Uint8("opcode", data[0]).Msg("Connection parameters are not managed by this lamp")
		return failed

	default:
		log.Debug().Uint8("opcode", data[0]).Msg("Unknown websocket command")
		return failed
	}
}

// statusFrame is [0x05, 0x00, mode, r, g, b, len, local time as "%c"...].
func (s *Server) statusFrame() []byte {
	st := s.ctrl.Status()

	mode := modeColor
	if st.Mode == ModeSun {
		mode = modeSunImitation
	}

	stamp := st.LocalTime.Format(time.ANSIC)
	if len(stamp) > maxDateTimeLen {
		stamp = stamp[:maxDateTimeLen]
	}

	frame := make([]byte, 0, 7+len(stamp))
	frame = append(frame, opGetStatus, resultSuccess, mode, st.Color.R, st.Color.G, st.Color.B, byte(len(stamp)))
	return append(frame, stamp...)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Debug().Str("remote", r.RemoteAddr).Msg("Websocket client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Websocket read error")
			}
			log.Debug().Str("remote", r.RemoteAddr).Msg("Websocket client disconnected")
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, s.HandleFrame(data)); err != nil {
			log.Warn().Err(err).Msg("Websocket write error")
			return
		}
	}
}
