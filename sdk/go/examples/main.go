package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"TypedSign-Chain/sdk/go/typedsign"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/typed-data/hash", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(typedsign.HashPreview{
			PrimaryType: "Mail",
			EncodedType: "Mail(Person from,Person to,string contents)Person(string name,address wallet)",
			Digest:      "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2",
		})
	})
	mux.HandleFunc("/api/v1/signatures", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(typedsign.SignatureJob{ID: "job-demo", Status: "pending", MaxRetries: 3})
	})
	mux.HandleFunc("/api/v1/signatures/job-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(typedsign.SignatureJob{
			ID:         "job-demo",
			Status:     "succeeded",
			MaxRetries: 3,
			Result: &typedsign.SignatureResult{
				Signer:    "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
				Signature: "0x4355c47d63924e8a72e509b65029052eb6c299d53a04e167c5775fd466751c9d07299936d304c153f6443dfa05f40ff007d72911b6f72307f996231605b915621c",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := typedsign.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}
	client.SetAccessToken("demo-token")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	message := json.RawMessage(`{"from":{"name":"Cow","wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},"to":{"name":"Bob","wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},"contents":"Hello, Bob!"}`)

	preview, err := client.Hash(ctx, typedsign.TypedData{Domain: "ether-mail", Kind: "mail", Message: message})
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s digest=%s\n", preview.EncodedType, preview.Digest)

	job, err := client.SubmitSignature(ctx, typedsign.SignatureRequest{Domain: "ether-mail", Kind: "mail", Key: "cow", Message: message})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted job %s (status=%s)\n", job.ID, job.Status)

	done, err := client.WaitForSignature(ctx, job.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s signed by %s: %s\n", done.ID, done.Result.Signer, done.Result.Signature)
}
