// Command shs-chat is a minimal line-chat demo over a secret-handshake
// authenticated, box-stream framed TCP connection, mirroring the
// to_box_stream().split_read_write() demo in the original kuska-ssb
// handshake-boxstream example and gosuda-portal/cmd/example_client's
// cobra+zerolog command shape.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/shsnet/internal/keystore"
	"github.com/gosuda/shsnet/shs"
)

var (
	flagIdentity string
	flagMaxFrame int
	flagListen   string
	flagDial     string
	flagPeerPk   string
)

var rootCmd = &cobra.Command{
	Use:   "shs-chat",
	Short: "Line chat over a secret-handshake authenticated box-stream",
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Listen for a single incoming connection and chat",
	RunE:  runServer,
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Dial a peer and chat",
	RunE:  runClient,
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	rootCmd.PersistentFlags().StringVar(&flagIdentity, "identity", "identity.json", "identity keyfile from shs-keygen")
	rootCmd.PersistentFlags().IntVar(&flagMaxFrame, "max-frame", shs.MaxFrameBody, "maximum box-stream frame body size")

	serverCmd.Flags().StringVar(&flagListen, "listen", ":7722", "TCP address to listen on")

	clientCmd.Flags().StringVar(&flagDial, "dial", "127.0.0.1:7722", "TCP address to dial")
	clientCmd.Flags().StringVar(&flagPeerPk, "peer-pk", "", "hex-encoded Ed25519 public key expected of the server (required)")

	rootCmd.AddCommand(serverCmd, clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("shs-chat")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := keystore.Load(flagIdentity)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info().Str("id", id.ID()).Str("listen", flagListen).Msg("[server] starting")

	ln, err := net.Listen("tcp", flagListen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("[server] connection accepted, starting handshake")

	netID := shs.NetId(id.NetID)
	hc, err := serverHandshake(conn, netID, id.PublicKey, id.PrivateKey)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info().Str("peer", keystore.DisplayID(hc.PeerPk)).Msg("[server] handshake complete")

	return chatLoop(ctx, hc, conn)
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagPeerPk == "" {
		return fmt.Errorf("--peer-pk is required")
	}
	peerPkBytes, err := hex.DecodeString(flagPeerPk)
	if err != nil || len(peerPkBytes) != 32 {
		return fmt.Errorf("--peer-pk must be 64 hex characters (32 bytes)")
	}

	id, err := keystore.Load(flagIdentity)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info().Str("id", id.ID()).Str("dial", flagDial).Msg("[client] connecting")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", flagDial)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	netID := shs.NetId(id.NetID)
	hc, err := clientHandshake(conn, netID, id.PublicKey, id.PrivateKey, peerPkBytes)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info().Str("peer", keystore.DisplayID(hc.PeerPk)).Msg("[client] handshake complete")

	return chatLoop(ctx, hc, conn)
}

func serverHandshake(conn net.Conn, netID shs.NetId, pk, sk []byte) (*shs.HandshakeComplete, error) {
	s0, err := shs.NewServerHandshake(netID, pk, sk)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, shs.ClientAuthSize)

	if _, err := readFull(conn, buf[:s0.RecvBytes()]); err != nil {
		return nil, err
	}
	s1, err := s0.RecvClientHello(buf[:shs.ClientHelloSize])
	if err != nil {
		return nil, err
	}

	s2, err := s1.SendServerHello(buf[:s1.SendBytes()])
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf[:shs.ServerHelloSize]); err != nil {
		return nil, err
	}

	if _, err := readFull(conn, buf[:s2.RecvBytes()]); err != nil {
		return nil, err
	}
	s3, err := s2.RecvClientAuth(buf[:shs.ClientAuthSize])
	if err != nil {
		return nil, err
	}

	s4, err := s3.SendServerAccept(buf[:s3.SendBytes()])
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf[:shs.ServerAcceptSize]); err != nil {
		return nil, err
	}
	return s4, nil
}

func clientHandshake(conn net.Conn, netID shs.NetId, pk, sk, serverPk []byte) (*shs.HandshakeComplete, error) {
	c0, err := shs.NewClientHandshake(netID, pk, sk, serverPk)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, shs.ClientAuthSize)

	s1, err := c0.SendClientHello(buf[:c0.SendBytes()])
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf[:shs.ClientHelloSize]); err != nil {
		return nil, err
	}

	if _, err := readFull(conn, buf[:s1.RecvBytes()]); err != nil {
		return nil, err
	}
	s2, err := s1.RecvServerHello(buf[:shs.ServerHelloSize])
	if err != nil {
		return nil, err
	}

	s3, err := s2.SendClientAuth(buf[:s2.SendBytes()])
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf[:shs.ClientAuthSize]); err != nil {
		return nil, err
	}

	if _, err := readFull(conn, buf[:s3.RecvBytes()]); err != nil {
		return nil, err
	}
	return s3.RecvServerAccept(buf[:shs.ServerAcceptSize])
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// chatLoop splits the completed handshake into independent send/recv halves
// and relays stdin to the peer while echoing whatever the peer sends to
// stdout, on two goroutines sharing nothing but the connection.
func chatLoop(ctx context.Context, hc *shs.HandshakeComplete, conn net.Conn) error {
	w, r, err := shs.NewSplit(hc, conn, flagMaxFrame)
	if err != nil {
		return fmt.Errorf("split box-stream: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := w.Write(scanner.Bytes()); err != nil {
				errCh <- fmt.Errorf("write: %w", err)
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				errCh <- fmt.Errorf("write: %w", err)
				return
			}
		}
		errCh <- w.Goodbye()
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
