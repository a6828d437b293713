package lib

import (
	"log"

	"github.com/zishang520/socket.io/v2/socket"
)

var socketServer *socket.Server

func NewSocketServer(s *socket.Server) {
	socketServer = s
}

// SocketEmitToRoom broadcasts an event to every client joined to the room.
func SocketEmitToRoom(room string, event string, payload any) {
	wss := socketServer
	if wss == nil {
		log.Printf("[socket] server not initialized, dropping event [%s]\n", event)
		return
	}
	if err := wss.To(socket.Room(room)).Emit(event, payload); err != nil {
		log.Printf("[socket] error emitting [%s] to room [%s]: %s\n", event, room, err.Error())
	}
}
