package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
)

// ListenRotctld serves the hamlib rotctld protocol on addr. One client
// controls the mount at a time: a new connection preempts the previous
// one, tearing down its session.
func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing rotctld socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				log.Printf("failed to accept: %v", err)
				continue
			}
			go s.handleRotctld(ctx, conn)
		}
	}()
	return nil
}

func (s *Server) handleRotctld(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())

	// The physical mount has one target; the newest client wins.
	s.connMu.Lock()
	if s.conn != nil {
		log.Printf("preempting connection from %v", s.conn.RemoteAddr())
		s.conn.Close()
	}
	s.conn = conn
	s.connMu.Unlock()
	session := s.manager.Start(ctx)
	defer func() {
		s.connMu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.connMu.Unlock()
		s.manager.Release(session)
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Split(cmd, " ")
			cmd = parts[0][2:len(parts[0])]
			if len(parts) > 1 {
				args = parts[1:len(parts)]
			}
			fmt.Fprintf(conn, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			if len(cmd) > 1 {
				args = strings.Fields(strings.TrimLeft(cmd[1:len(cmd)], " "))
			}
			cmd = string(cmd[0])
		}
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		rprt := -1
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(conn, `Model name: JPTH-13M-PoE
Mfg name: Jidetech
Rot type: Az-El
Min Azimuth: 0.00
Max Azimuth: 360.00
Min Elevation: -90.00
Max Elevation: 90.00
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: Y
Can Reset: N
Can Move: N
Can get Info: N
`)
			rprt = 0
		case "S", "stop":
			extended = true // always print RPRT
			session.Stop()
			rprt = 0
		case "K", "park":
			extended = true // always print RPRT
			session.Park()
			rprt = 0
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				rprt = -22
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				rprt = -22
				break
			}
			session.SetTarget(az, el)
			rprt = 0
		case "p", "get_pos":
			az, el, code := session.CurrentPosition()
			if extended {
				fmt.Fprintf(conn, "Azimuth: %.6f\nElevation: %.6f\nStatus: %v\n", az, el, code)
			} else {
				fmt.Fprintf(conn, "%.6f\n%.6f\n", az, el)
			}
			rprt = 0
		}
		if extended || rprt != 0 {
			fmt.Fprintf(conn, "RPRT %d\n", rprt)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
