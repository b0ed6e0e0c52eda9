//go:build integration

package integration

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "math/big"
    "net"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/amirimatin/go-consensus/pkg/bootstrap"
    "github.com/amirimatin/go-consensus/pkg/cluster"
    tlsx "github.com/amirimatin/go-consensus/pkg/security/tlsconfig"
    httpjson "github.com/amirimatin/go-consensus/pkg/transport/httpjson"
)

const rosterTLS = "t1@127.0.0.1:9541,t2@127.0.0.1:9542,t3@127.0.0.1:9543"

var addrsTLS = []string{"127.0.0.1:9541", "127.0.0.1:9542", "127.0.0.1:9543"}

func TestTLS_ThreeNodes_ElectAndStatus(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
    defer cancel()

    dir := t.TempDir()
    caCrt, nodeCrt, nodeKey, cliCrt, cliKey := mustMakeTestCerts(t, dir)

    start := func(id, bind string) *cluster.Cluster {
        c, err := bootstrap.Run(ctx, bootstrap.Config{
            NodeID:    id,
            BindAddr:  bind,
            RosterCSV: rosterTLS,
            Proto:     "http",
            TLSEnable: true, TLSCA: caCrt, TLSCert: nodeCrt, TLSKey: nodeKey,
        })
        if err != nil { t.Fatalf("%s: %v", id, err) }
        return c
    }
    n1 := start("t1", addrsTLS[0])
    defer n1.Close()
    n2 := start("t2", addrsTLS[1])
    defer n2.Close()
    n3 := start("t3", addrsTLS[2])
    defer n3.Close()

    topts := tlsx.Options{Enable: true, CAFile: caCrt, CertFile: cliCrt, KeyFile: cliKey}
    cliTLS, err := topts.Client()
    if err != nil { t.Fatalf("tls client: %v", err) }
    cli := httpjson.NewClient(3 * time.Second).UseTLS(cliTLS)

    waitUntil(t, 20*time.Second, func() error {
        for _, addr := range addrsTLS {
            s, err := fetchStatus(ctx, cli, addr)
            if err != nil { return err }
            if !s.Healthy || s.Node.LeaderID == "" { return errNotYet }
        }
        return nil
    })
}

func mustMakeTestCerts(t *testing.T, dir string) (caCrt, nodeCrt, nodeKey, cliCrt, cliKey string) {
    t.Helper()
    caPriv, _ := rsa.GenerateKey(rand.Reader, 2048)
    caTpl := &x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "go-consensus-ca"}, NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(48 * time.Hour), KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign, IsCA: true, BasicConstraintsValid: true}
    caDER, _ := x509.CreateCertificate(rand.Reader, caTpl, caTpl, &caPriv.PublicKey, caPriv)
    caCrt = filepath.Join(dir, "ca.crt")
    writePEM(t, caCrt, "CERTIFICATE", caDER)

    makeLeaf := func(cn, crtName, keyName string, usages []x509.ExtKeyUsage) (string, string) {
        priv, _ := rsa.GenerateKey(rand.Reader, 2048)
        tpl := &x509.Certificate{SerialNumber: big.NewInt(time.Now().UnixNano()), Subject: pkix.Name{CommonName: cn}, NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(24 * time.Hour), KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment, ExtKeyUsage: usages}
        tpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
        der, _ := x509.CreateCertificate(rand.Reader, tpl, caTpl, &priv.PublicKey, caPriv)
        crtPath := filepath.Join(dir, crtName)
        keyPath := filepath.Join(dir, keyName)
        writePEM(t, crtPath, "CERTIFICATE", der)
        writePEM(t, keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv))
        return crtPath, keyPath
    }

    // Nodes dial each other, so their leaf carries both usages.
    nodeCrt, nodeKey = makeLeaf("go-consensus-node", "node.crt", "node.key", []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth})
    cliCrt, cliKey = makeLeaf("go-consensus-client", "client.crt", "client.key", []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth})
    return
}

func writePEM(t *testing.T, path, typ string, der []byte) {
    t.Helper()
    f, err := os.Create(path)
    if err != nil { t.Fatalf("create %s: %v", path, err) }
    defer f.Close()
    if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil { t.Fatalf("pem encode %s: %v", path, err) }
}
