package io

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestTextConn(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	tc := NewTextConn(server, 100, time.Second, time.Second)
	defer tc.Close()

	go func() {
		_, _ = client.Write([]byte("HELO example.com\r\n"))
	}()
	line, err := tc.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() unexpected error: %v", err)
	}
	if line != "HELO example.com" {
		t.Errorf("ReadLine() = %q", line)
	}

	done := make(chan error, 1)
	go func() { done <- tc.WriteLine("250 OK") }()

	reply, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if reply != "250 OK\r\n" {
		t.Errorf("reply = %q, want %q", reply, "250 OK\r\n")
	}
	if err := <-done; err != nil {
		t.Errorf("WriteLine() unexpected error: %v", err)
	}
}

func TestTextConn_ReadTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	tc := NewTextConn(server, 100, 20*time.Millisecond, 0)
	defer tc.Close()

	_, err := tc.ReadLine()
	netErr, ok := err.(net.Error)
	if !ok || !netErr.Timeout() {
		t.Errorf("ReadLine() error = %v, want timeout", err)
	}
}
