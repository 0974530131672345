// Package sra and its sub-packages implement the backend service that turns end-user search activity into
// achievement awards minted on a remote ledger process.
/*
sra provides you with one microservice:

a rewarder microservice (package rewarder) that consumes reward events from a message broker, validates the
originating wallet address and grants the corresponding achievements through a remote ledger gateway.

Architecture

End-user search events are published to the message broker as reward jobs. The rewarder service consumes the
jobs, validates and normalizes the wallet address (Arweave, EVM and Solana formats are supported, package
lib/wallet), maps the event type to one or more achievements and awards each of them through the achievement
ledger service (package achievement). The message broker is the single authority for retry scheduling: on
failure the rewarder reports back and the broker redelivers the job after a growing backoff until the attempt
budget is exhausted. The broker is implemented as a product agnostic layer (package lib/msg) and is configured
via a JSON config file at service startup.

The achievement ledger service keeps a time-bounded cache of the remote ledger state, verifies at startup that
the service credential is enabled for the awarder role and that every achievement the processor can grant
exists in the ledger catalog, and exposes an idempotent award operation. Ledger messages are signed with an
RSA wallet key loaded from a JWK file, and every gateway interaction is retried with exponential backoff on
server errors (package lib/ledger).

The rewarder has its own database used to persist a job audit trail: completed jobs in a bounded recent set
and jobs that exhausted their attempts for inspection. Its layered implementation (package lib/store) provides
a database product agnostic interface.

Depending on workload and resources, one or more instances of the microservice can be orchestrated in order to
provide the required service level to the users.

The microservice can also be monitored via a Prometheus API by setting the flag "-m" at startup.

Rewarder

The rewarder microservice (package rewarder) can be started running cmd/rewarder/main.go. It exposes an HTTP
RESTful API that can be used to enqueue reward events, inspect queue depths and job counts, and list the
processed job records.

*/
package sra
