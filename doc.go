/*
Package azddns keeps an Azure DNS A record pointed at the current public IPv4 address.

Usage will always start with [azddns.New],
which returns a [Client] for one record.
New requires the record's fully qualified name, a [Provider] (normally [UsingAzure]) and a [Store].

Each call to [Client.Run] is one pass:
four observations of what the record should be are gathered,
[Reconcile] decides whether the provider needs a write,
and [Client.Apply] performs it, remembers the pushed address and sends a notification.
Passes are meant to be started by cron (see [CronLine] and [Crontab]) or by [RunDaemon],
never concurrently.
*/
package azddns
