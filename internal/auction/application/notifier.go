package application

import "github.com/cristianortiz/farmbid/internal/auction/domain"

// CompositeNotifier fans confirmed state changes out to several targets,
// typically the websocket gateway and the event publisher
type CompositeNotifier struct {
	targets []domain.Notifier
}

func NewCompositeNotifier(targets ...domain.Notifier) *CompositeNotifier {
	return &CompositeNotifier{targets: targets}
}

// Add registers another target; call before traffic starts flowing
func (n *CompositeNotifier) Add(target domain.Notifier) {
	n.targets = append(n.targets, target)
}

func (n *CompositeNotifier) AuctionCreated(a *domain.Auction) {
	for _, t := range n.targets {
		t.AuctionCreated(a)
	}
}

func (n *CompositeNotifier) AuctionStarted(a *domain.Auction) {
	for _, t := range n.targets {
		t.AuctionStarted(a)
	}
}

func (n *CompositeNotifier) AuctionEnded(a *domain.Auction) {
	for _, t := range n.targets {
		t.AuctionEnded(a)
	}
}

func (n *CompositeNotifier) AuctionCanceled(a *domain.Auction) {
	for _, t := range n.targets {
		t.AuctionCanceled(a)
	}
}

func (n *CompositeNotifier) BidPlaced(a *domain.Auction, b *domain.Bid) {
	for _, t := range n.targets {
		t.BidPlaced(a, b)
	}
}
