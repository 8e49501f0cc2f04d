package main

import (
	"bytes"
	"flag"
	"log"
	"net"
	"net/mail"
	"net/textproto"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/emersion/go-milter"

	"github.com/sixpack-mail/dkimsign"
)

var (
	signDomains stringSliceFlag
	listenURI   string
	keyPath     string
	selector    string
	headerList  string
	verbose     bool
)

var privateKey dkimsign.PrivateKey

var defaultSignHeaders = []string{
	"From",
	"Reply-To",
	"Subject",
	"Date",
	"To",
	"Cc",
	"Resent-Date",
	"Resent-From",
	"Resent-To",
	"Resent-Cc",
	"In-Reply-To",
	"References",
	"List-Id",
	"List-Help",
	"List-Unsubscribe",
	"List-Subscribe",
	"List-Post",
	"List-Owner",
	"List-Archive",
}

func init() {
	flag.Var(&signDomains, "d", "Domain(s) whose mail should be signed")
	flag.StringVar(&listenURI, "l", "unix:///tmp/dkim-milter-sign.sock", "Listen URI")
	flag.StringVar(&keyPath, "k", "", "Private key (PEM-formatted)")
	flag.StringVar(&selector, "s", "", "Selector")
	flag.StringVar(&headerList, "h", strings.Join(defaultSignHeaders, ":"), "colon-separated header field names to sign")
	flag.BoolVar(&verbose, "v", false, "Enable verbose logging")
}

type stringSliceFlag []string

func (f *stringSliceFlag) String() string {
	return strings.Join(*f, ", ")
}

func (f *stringSliceFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// session buffers one message's headers and body and signs it once
// the body is complete, grounded on the teacher's session state
// machine (cmd/dkim-milter/main.go). Unlike the teacher this adapter
// never verifies an incoming signature and never synthesizes
// Authentication-Results: verification is out of scope.
type session struct {
	headerBuf  bytes.Buffer
	bodyBuf    bytes.Buffer
	fields     []dkimsign.Field
	signDomain string
}

func (s *session) Connect(host string, family string, port uint16, addr net.IP, m *milter.Modifier) (milter.Response, error) {
	return nil, nil
}

func (s *session) Helo(name string, m *milter.Modifier) (milter.Response, error) {
	return nil, nil
}

func (s *session) MailFrom(from string, m *milter.Modifier) (milter.Response, error) {
	return nil, nil
}

func (s *session) RcptTo(rcptTo string, m *milter.Modifier) (milter.Response, error) {
	return nil, nil
}

func parseAddressDomain(v string) (string, error) {
	addr, err := mail.ParseAddress(v)
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(addr.Address, "@", 2)
	if len(parts) != 2 {
		return "", &dkimsign.ConfigError{Msg: "malformed address: missing '@'"}
	}
	return parts[1], nil
}

func (s *session) Header(name string, value string, m *milter.Modifier) (milter.Response, error) {
	if strings.EqualFold(name, "From") || strings.EqualFold(name, "Sender") {
		domain, err := parseAddressDomain(value)
		if err == nil {
			for _, d := range signDomains {
				if strings.EqualFold(d, domain) {
					s.signDomain = d
					break
				}
			}
		}
	}

	raw := name + ": " + value + "\r\n"
	s.headerBuf.WriteString(raw)
	s.fields = append(s.fields, dkimsign.Field{Name: name, Raw: raw})
	return milter.RespContinue, nil
}

func (s *session) Headers(h textproto.MIMEHeader, m *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *session) BodyChunk(chunk []byte, m *milter.Modifier) (milter.Response, error) {
	s.bodyBuf.Write(chunk)
	return milter.RespContinue, nil
}

func (s *session) Body(m *milter.Modifier) (milter.Response, error) {
	if s.signDomain == "" {
		return milter.RespAccept, nil
	}

	cfg, err := buildConfig(s.signDomain)
	if err != nil {
		if verbose {
			log.Printf("dkim-milter-sign: config: %v", err)
		}
		return milter.RespAccept, nil
	}

	msg := &dkimsign.Message{Fields: s.fields, Body: s.bodyBuf.Bytes()}
	sig, err := dkimsign.NewSigner(cfg).Sign(msg)
	if err != nil {
		if verbose {
			log.Printf("dkim-milter-sign: signing failed: %v", err)
		}
		return milter.RespAccept, nil
	}

	name, value, _ := strings.Cut(sig, ": ")
	if err := m.InsertHeader(0, name, value); err != nil {
		return nil, err
	}
	return milter.RespAccept, nil
}

func buildConfig(domain string) (*dkimsign.Config, error) {
	b, err := dkimsign.NewConfigBuilder().WithSignedHeaders(strings.Split(headerList, ":"))
	if err != nil {
		return nil, err
	}
	return b.
		WithPrivateKey(privateKey).
		WithSelector(selector).
		WithSigningDomain(domain).
		Build()
}

func main() {
	flag.Parse()

	if (len(signDomains) > 0 || keyPath != "" || selector != "") && !(len(signDomains) > 0 && keyPath != "" && selector != "") {
		log.Fatal("Domain(s) (-d), private key (-k) and selector (-s) must all be specified")
	}

	if keyPath != "" {
		var err error
		privateKey, err = loadPrivateKey(keyPath)
		if err != nil {
			log.Fatalf("Failed to load private key from %q: %v", keyPath, err)
		}
	}

	parts := strings.SplitN(listenURI, "://", 2)
	if len(parts) != 2 {
		log.Fatal("Invalid listen URI")
	}
	listenNetwork, listenAddr := parts[0], parts[1]

	srv := milter.Server{
		NewMilter: func() milter.Milter {
			return &session{}
		},
		Actions:  milter.OptAddHeader | milter.OptChangeHeader,
		Protocol: milter.OptNoConnect | milter.OptNoHelo | milter.OptNoMailFrom | milter.OptNoRcptTo,
	}

	ln, err := net.Listen(listenNetwork, listenAddr)
	if err != nil {
		log.Fatal("Failed to setup listener: ", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		if err := srv.Close(); err != nil {
			log.Fatal("Failed to close server: ", err)
		}
	}()

	log.Println("dkim-milter-sign listening at", listenURI)
	if err := srv.Serve(ln); err != nil && err != milter.ErrServerClosed {
		log.Fatal("Failed to serve: ", err)
	}
}
