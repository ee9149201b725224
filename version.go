package flinksql

// Version of this library, reported to the gateway in the User-Agent header.
const Version = "0.1.0"
