package opsrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SendDueReminders triggers a sweep on a remote server and returns the
// sent and failed counts.
func SendDueReminders(ctx context.Context, cc grpc.ClientConnInterface, secret string) (sent, failed int, err error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+secret)
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, SendDueRemindersMethod, &emptypb.Empty{}, out); err != nil {
		return 0, 0, err
	}
	f := out.GetFields()
	return int(f["sent"].GetNumberValue()), int(f["failed"].GetNumberValue()), nil
}
